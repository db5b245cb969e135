package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
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
)

const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Scope        string
	Timeout      time.Duration
	RetryMax     int
	Metrics      *metrics.Metrics
}

// Client is the eBay Browse API connector.
type Client struct {
	baseURL  string
	retryMax int

	http     *http.Client
	tokens   *tokenManager
	cache    *cache.ResultCache
	failures *failure.Tracker
	limiter  *ratelimit.Bucket
	metrics  *metrics.Metrics
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
	hc := &http.Client{Timeout: to}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		retryMax: retryMax,
		http:     hc,
		tokens:   newTokenManager(opts.ClientID, opts.ClientSecret, opts.BaseURL, opts.Scope, hc),
		cache:    rc,
		failures: ft,
		limiter:  rl,
		metrics:  opts.Metrics,
	}
}

func (c *Client) Name() string { return "ebay" }

// Search performs a paginated Browse API item summary search.
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
	cacheKey := "ebay|" + query + "|page:" + strconv.Itoa(page) + "|" + fp

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
		if c.metrics != nil {
			c.metrics.RecordCircuitOpen()
		}
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", strings.TrimSpace(query))
	q.Set("limit", strconv.Itoa(size))
	q.Set("offset", strconv.Itoa((page-1)*size))
	if filt := priceFilter(f.MinPrice, f.MaxPrice); filt != "" {
		q.Set("filter", filt)
	}
	switch f.Sort {
	case marketplace.SortPriceLow:
		q.Set("sort", "price")
	case marketplace.SortPriceHigh:
		q.Set("sort", "-price")
	}

	body, err := c.get(ctx, c.baseURL+"/buy/browse/v1/item_summary/search?"+q.Encode())
	if err != nil {
		if c.failures != nil {
			c.failures.RecordFailure(query, page, fp)
		}
		return nil, err
	}

	var parsed struct {
		ItemSummaries []apiItem `json:"itemSummaries"`
		Total         int       `json:"total"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if c.failures != nil {
			c.failures.RecordFailure(query, page, fp)
		}
		return nil, fmt.Errorf("%w: %v", marketplace.ErrMalformedResponse, err)
	}

	products := make([]marketplace.Product, 0, len(parsed.ItemSummaries))
	for _, it := range parsed.ItemSummaries {
		products = append(products, it.normalize())
	}
	// Server-side price filtering is advisory only; re-filter regardless.
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

// Detail fetches one item by ID.
func (c *Client) Detail(ctx context.Context, productID string) (marketplace.ProductDetail, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return marketplace.ProductDetail{}, marketplace.ErrNotFound
	}

	body, err := c.get(ctx, c.baseURL+"/buy/browse/v1/item/"+url.PathEscape(id))
	if err != nil {
		return marketplace.ProductDetail{}, err
	}

	var it apiItem
	if err := json.Unmarshal(body, &it); err != nil {
		return marketplace.ProductDetail{}, fmt.Errorf("%w: %v", marketplace.ErrMalformedResponse, err)
	}
	if it.ItemID == "" {
		return marketplace.ProductDetail{}, fmt.Errorf("%w: missing itemId", marketplace.ErrMalformedResponse)
	}
	return marketplace.ProductDetail{
		Product:     it.normalize(),
		Description: strings.TrimSpace(it.ShortDescription),
		ShopName:    it.Seller.Username,
	}, nil
}

// get issues a bearer-authorized GET with throttle-aware retries.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if c.limiter != nil && !c.limiter.Take(ctx) {
			return nil, ctx.Err()
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", marketplace.ErrUpstreamUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", marketplace.ErrUpstreamUnavailable, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
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
			c.metrics.RecordUpstream("ebay", resp.StatusCode)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if c.limiter != nil {
				c.limiter.Reward()
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, marketplace.ErrNotFound
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

// priceFilter renders a Browse API price filter from cent bounds.
func priceFilter(min, max int64) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("price:[%s..%s],priceCurrency:USD", centsToMajor(min), centsToMajor(max))
	case min > 0:
		return fmt.Sprintf("price:[%s..],priceCurrency:USD", centsToMajor(min))
	case max > 0:
		return fmt.Sprintf("price:[..%s],priceCurrency:USD", centsToMajor(max))
	default:
		return ""
	}
}

func centsToMajor(cents int64) string {
	return decimal.New(cents, -2).String()
}

/* ========================= Wire types ========================= */

type apiPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type apiImage struct {
	ImageURL string `json:"imageUrl"`
}

type apiSeller struct {
	Username string `json:"username"`
}

type apiItem struct {
	ItemID           string    `json:"itemId"`
	Title            string    `json:"title"`
	ItemWebURL       string    `json:"itemWebUrl"`
	Image            apiImage  `json:"image"`
	Price            apiPrice  `json:"price"`
	OriginalPrice    apiPrice  `json:"originalPrice"`
	ShortDescription string    `json:"shortDescription"`
	Seller           apiSeller `json:"seller"`
}

func (it apiItem) normalize() marketplace.Product {
	currency := it.Price.Currency
	if currency == "" {
		currency = "USD"
	}
	return marketplace.Product{
		ID:            it.ItemID,
		Marketplace:   "ebay",
		Title:         strings.TrimSpace(it.Title),
		URL:           strings.TrimSpace(it.ItemWebURL),
		ImageURL:      strings.TrimSpace(it.Image.ImageURL),
		Price:         priceCents(it.Price.Value),
		OriginalPrice: priceCents(it.OriginalPrice.Value),
		Currency:      currency,
	}
}

// priceCents parses a decimal price string into minor units; unparseable
// values read as 0.
func priceCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.Shift(2).IntPart()
}
