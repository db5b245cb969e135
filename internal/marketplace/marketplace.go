// Package marketplace defines the product model shared by all marketplace
// connectors and the Client interface the rest of the service consumes.
//
// Connector-specific logic (signing, token refresh, envelope parsing) lives
// in the per-marketplace subpackages; nothing in this package touches the
// network.
package marketplace

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Typed failures surfaced by connectors. Callers map these to transport
// status codes (503 / 404 / 400); the price monitor treats all of them as
// "no price this tick".
var (
	ErrUpstreamUnavailable    = errors.New("marketplace: upstream unavailable")
	ErrMalformedResponse      = errors.New("marketplace: malformed upstream response")
	ErrNotFound               = errors.New("marketplace: product not found")
	ErrUnsupportedMarketplace = errors.New("marketplace: unsupported marketplace")
)

// SortOrder selects result ordering for a search.
type SortOrder string

const (
	SortBest      SortOrder = ""
	SortPriceLow  SortOrder = "price_low"
	SortPriceHigh SortOrder = "price_high"
)

// SearchFilters narrows a paginated search. Prices are minor currency units
// (cents); zero means unbounded.
type SearchFilters struct {
	MinPrice int64
	MaxPrice int64
	Page     int
	PageSize int
	Sort     SortOrder
}

// Fingerprint renders the filters into a stable string used in cache and
// failure-tracker keys.
func (f SearchFilters) Fingerprint() string {
	return "min=" + strconv.FormatInt(f.MinPrice, 10) +
		":max=" + strconv.FormatInt(f.MaxPrice, 10) +
		":size=" + strconv.Itoa(f.PageSize) +
		":sort=" + string(f.Sort)
}

// Product is a normalized product summary from one marketplace.
type Product struct {
	ID            string `json:"id"`
	Marketplace   string `json:"marketplace"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url,omitempty"`
	Price         int64  `json:"price"`          // cents
	OriginalPrice int64  `json:"original_price"` // cents, 0 when absent
	Currency      string `json:"currency"`
	Rating        string `json:"rating,omitempty"`
	Orders        int    `json:"orders,omitempty"`
}

// ProductDetail extends Product with fields only the detail endpoint returns.
type ProductDetail struct {
	Product
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	ShopName    string   `json:"shop_name,omitempty"`
}

// Client is one marketplace connector.
type Client interface {
	// Name returns the marketplace identifier ("aliexpress", "ebay", ...).
	Name() string

	// Search returns product summaries for a query and page. The returned
	// slice is already re-filtered against f.MinPrice/f.MaxPrice client-side;
	// server-side price filtering is advisory only.
	Search(ctx context.Context, query string, f SearchFilters) ([]Product, error)

	// Detail fetches a single product. Empty upstream result maps to
	// ErrNotFound.
	Detail(ctx context.Context, productID string) (ProductDetail, error)
}

// Registry resolves marketplace names to connectors. Built once at startup.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[strings.ToLower(c.Name())] = c
	}
	return &Registry{clients: m}
}

// Get returns the connector for name, or ErrUnsupportedMarketplace.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnsupportedMarketplace
	}
	return c, nil
}

// All returns every registered connector.
func (r *Registry) All() []Client {
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FilterByPrice drops products outside [min, max]. Zero bounds are open.
//
// Upstream min_sale_price/max_sale_price filtering misbehaves at certain
// thresholds, so connectors apply this unconditionally on every result set
// instead of trusting the server-side filter.
func FilterByPrice(in []Product, min, max int64) []Product {
	if min <= 0 && max <= 0 {
		return in
	}
	out := in[:0:0]
	for _, p := range in {
		if min > 0 && p.Price < min {
			continue
		}
		if max > 0 && p.Price > max {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SortProducts orders products in place according to order. SortBest keeps
// upstream relevance order.
func SortProducts(ps []Product, order SortOrder) {
	switch order {
	case SortPriceLow:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Price < ps[j].Price })
	case SortPriceHigh:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Price > ps[j].Price })
	}
}
