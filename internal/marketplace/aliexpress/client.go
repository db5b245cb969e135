// Package aliexpress implements the AliExpress affiliate API connector.
//
// Every call is a signed form-encoded POST. The request flow per call is
// strictly: cache check, pagination circuit check, signed upstream call,
// result recording. Server-side min/max price filtering is known to
// misbehave above certain values, so results are always re-filtered
// client-side before being returned.
package aliexpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/cache"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/failure"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/metrics"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/ratelimit"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/signing"
)

const (
	methodProductQuery  = "aliexpress.affiliate.product.query"
	methodProductDetail = "aliexpress.affiliate.productdetail.get"
	apiVersion          = "2.0"

	// Upstream expects timestamps in its own timezone, not UTC.
	timestampLayout = "2006-01-02 15:04:05"

	maxBodyBytes = 4 << 20
)

// upstream timestamps are Asia/Shanghai local time.
var upstreamTZ = mustLoadTZ("Asia/Shanghai")

func mustLoadTZ(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// Options configures a Client.
type Options struct {
	AppKey     string
	AppSecret  string
	BaseURL    string
	TrackingID string
	Timeout    time.Duration
	RetryMax   int
	Metrics    *metrics.Metrics
}

// Client is the AliExpress affiliate connector.
type Client struct {
	appKey     string
	appSecret  string
	baseURL    string
	trackingID string
	retryMax   int

	http     *http.Client
	cache    *cache.ResultCache
	failures *failure.Tracker
	limiter  *ratelimit.Bucket
	metrics  *metrics.Metrics

	now func() time.Time
}

func New(opts Options, rc *cache.ResultCache, ft *failure.Tracker, rl *ratelimit.Bucket) *Client {
	to := opts.Timeout
	if to <= 0 {
		to = 20 * time.Second
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	return &Client{
		appKey:     opts.AppKey,
		appSecret:  opts.AppSecret,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		trackingID: opts.TrackingID,
		retryMax:   retryMax,
		http:       &http.Client{Timeout: to},
		cache:      rc,
		failures:   ft,
		limiter:    rl,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

func (c *Client) Name() string { return "aliexpress" }

// Search performs a paginated product query.
func (c *Client) Search(ctx context.Context, query string, f marketplace.SearchFilters) ([]marketplace.Product, error) {
	page := f.Page
	if page <= 0 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 {
		size = 20
	}
	fp := f.Fingerprint()
	cacheKey := "aliexpress|" + query + "|page:" + strconv.Itoa(page) + "|" + fp

	if c.cache != nil {
		hit, ok := c.cache.Get(cacheKey)
		if c.metrics != nil {
			c.metrics.RecordCache(ok)
		}
		if ok {
			return hit, nil
		}
	}
	if c.failures != nil && c.failures.ShouldStopPagination(query, page, fp) {
		// Circuit open: this page is presumed broken for this query until the
		// failure window expires. Do not call upstream.
		if c.metrics != nil {
			c.metrics.RecordCircuitOpen()
		}
		return nil, nil
	}

	params := c.baseParams(methodProductQuery)
	params["keywords"] = strings.TrimSpace(query)
	params["page_no"] = strconv.Itoa(page)
	params["page_size"] = strconv.Itoa(size)
	params["target_currency"] = "USD"
	params["target_language"] = "EN"
	if c.trackingID != "" {
		params["tracking_id"] = c.trackingID
	}
	// Advisory only: upstream price filtering is unreliable, results are
	// re-filtered below regardless.
	if f.MinPrice > 0 {
		params["min_sale_price"] = strconv.FormatInt(f.MinPrice, 10)
	}
	if f.MaxPrice > 0 {
		params["max_sale_price"] = strconv.FormatInt(f.MaxPrice, 10)
	}
	switch f.Sort {
	case marketplace.SortPriceLow:
		params["sort"] = "SALE_PRICE_ASC"
	case marketplace.SortPriceHigh:
		params["sort"] = "SALE_PRICE_DESC"
	}

	result, err := c.call(ctx, params)
	if err != nil {
		if c.failures != nil {
			c.failures.RecordFailure(query, page, fp)
		}
		return nil, err
	}

	products := make([]marketplace.Product, 0, len(result.productArray()))
	for _, ap := range result.productArray() {
		products = append(products, ap.normalize())
	}
	products = marketplace.FilterByPrice(products, f.MinPrice, f.MaxPrice)
	marketplace.SortProducts(products, f.Sort)

	if c.failures != nil {
		c.failures.RecordSuccess(query, page, fp)
	}
	if c.cache != nil {
		c.cache.Set(cacheKey, products)
	}
	return products, nil
}

// Detail fetches one product. An empty upstream result maps to ErrNotFound.
func (c *Client) Detail(ctx context.Context, productID string) (marketplace.ProductDetail, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return marketplace.ProductDetail{}, marketplace.ErrNotFound
	}

	params := c.baseParams(methodProductDetail)
	params["product_ids"] = id
	params["target_currency"] = "USD"
	params["target_language"] = "EN"
	if c.trackingID != "" {
		params["tracking_id"] = c.trackingID
	}

	result, err := c.call(ctx, params)
	if err != nil {
		return marketplace.ProductDetail{}, err
	}
	arr := result.productArray()
	if len(arr) == 0 {
		return marketplace.ProductDetail{}, marketplace.ErrNotFound
	}
	p := arr[0]
	return marketplace.ProductDetail{
		Product:  p.normalize(),
		ShopName: p.ShopName,
	}, nil
}

func (c *Client) baseParams(method string) map[string]string {
	return map[string]string{
		"app_key":     c.appKey,
		"method":      method,
		"sign_method": "md5",
		"timestamp":   c.now().In(upstreamTZ).Format(timestampLayout),
		"v":           apiVersion,
		"format":      "json",
	}
}

// call signs params, POSTs them, and parses the response envelope. Throttle
// responses (429/5xx) are retried with backoff up to retryMax attempts.
func (c *Client) call(ctx context.Context, params map[string]string) (*queryResult, error) {
	sign, err := signing.Sign(params, c.appSecret, signing.MD5)
	if err != nil {
		// A signing failure is a code/config bug, never a transient fault.
		return nil, fmt.Errorf("sign request: %w", err)
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", sign)
	encoded := form.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if c.limiter != nil && !c.limiter.Take(ctx) {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", marketplace.ErrUpstreamUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if c.limiter != nil {
				c.limiter.Penalize(500 * time.Millisecond)
			}
			lastErr = fmt.Errorf("%w: %v", marketplace.ErrUpstreamUnavailable, err)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if c.metrics != nil {
			c.metrics.RecordUpstream("aliexpress", resp.StatusCode)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if c.limiter != nil {
				c.limiter.Reward()
			}
			return parseEnvelope(body)
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			if c.limiter != nil {
				c.limiter.Penalize(retryAfter(resp.Header))
			}
			lastErr = fmt.Errorf("%w: http %d", marketplace.ErrUpstreamUnavailable, resp.StatusCode)
			if attempt < c.retryMax {
				backoff := time.Duration(attempt*attempt)*250*time.Millisecond + 100*time.Millisecond
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		default:
			return nil, fmt.Errorf("%w: http %d", marketplace.ErrUpstreamUnavailable, resp.StatusCode)
		}
	}
	return nil, lastErr
}

func retryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 3 * time.Second
}

/* ========================= Response envelope ========================= */

type respEnvelope struct {
	RespResult *respResult `json:"resp_result"`
}

type respResult struct {
	RespCode int          `json:"resp_code"`
	RespMsg  string       `json:"resp_msg"`
	Result   *queryResult `json:"result"`
}

type queryResult struct {
	Products         *productList `json:"products"`
	TotalRecordCount int          `json:"total_record_count"`
}

type productList struct {
	Product []apiProduct `json:"product"`
}

func (r *queryResult) productArray() []apiProduct {
	if r == nil || r.Products == nil {
		return nil
	}
	return r.Products.Product
}

// apiProduct mirrors the upstream wire shape. Prices arrive as decimal
// strings ("12.34") in major units.
type apiProduct struct {
	ProductID       json.Number `json:"product_id"`
	ProductTitle    string      `json:"product_title"`
	ProductURL      string      `json:"product_detail_url"`
	ImageURL        string      `json:"product_main_image_url"`
	SalePrice       string      `json:"target_sale_price"`
	OriginalPrice   string      `json:"target_original_price"`
	Currency        string      `json:"target_sale_price_currency"`
	EvaluateRate    string      `json:"evaluate_rate"`
	LatestVolume    int         `json:"lastest_volume"`
	ShopName        string      `json:"shop_name"`
	FirstLevelCatID int         `json:"first_level_category_id"`
}

func (p apiProduct) normalize() marketplace.Product {
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	return marketplace.Product{
		ID:            p.ProductID.String(),
		Marketplace:   "aliexpress",
		Title:         strings.TrimSpace(p.ProductTitle),
		URL:           strings.TrimSpace(p.ProductURL),
		ImageURL:      strings.TrimSpace(p.ImageURL),
		Price:         priceCents(p.SalePrice),
		OriginalPrice: priceCents(p.OriginalPrice),
		Currency:      currency,
		Rating:        strings.TrimSpace(p.EvaluateRate),
		Orders:        p.LatestVolume,
	}
}

// priceCents parses an upstream decimal price string into minor units.
// Unparseable prices read as 0 rather than failing the whole result set.
func priceCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Printf("[aliexpress] unparseable price %q", s)
		return 0
	}
	return d.Shift(2).IntPart()
}

// parseEnvelope validates the resp_code/resp_result wrapper. Missing
// required fields are a schema violation, not a silent nil.
func parseEnvelope(body []byte) (*queryResult, error) {
	var env respEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrMalformedResponse, err)
	}
	if env.RespResult == nil {
		return nil, fmt.Errorf("%w: missing resp_result", marketplace.ErrMalformedResponse)
	}
	if env.RespResult.RespCode != 200 {
		return nil, fmt.Errorf("%w: resp_code %d %s", marketplace.ErrUpstreamUnavailable,
			env.RespResult.RespCode, env.RespResult.RespMsg)
	}
	if env.RespResult.Result == nil {
		return nil, fmt.Errorf("%w: missing result", marketplace.ErrMalformedResponse)
	}
	return env.RespResult.Result, nil
}
