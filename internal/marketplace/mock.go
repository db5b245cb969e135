package marketplace

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
)

// Mock produces synthetic products for demos and unit tests. It is
// deterministic for a given (query, page, seed) and makes no network calls.
type Mock struct {
	name string
	seed int64
}

func NewMock(name string, seed int64) *Mock {
	if strings.TrimSpace(name) == "" {
		name = "mock"
	}
	return &Mock{name: name, seed: seed}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Search(ctx context.Context, query string, f SearchFilters) ([]Product, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	page := f.Page
	if page <= 0 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 {
		size = 12
	}
	q := strings.TrimSpace(query)
	if q == "" {
		q = "example"
	}

	// Deterministic pseudo-random from query+page.
	h := fnv64(q + "|" + strconv.Itoa(page))
	r := rand.New(rand.NewSource(int64(h) ^ m.seed))

	out := make([]Product, 0, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("%d%08d", page, i+1)
		price := int64(1000 + (i * 250) + int(r.Int31n(500)))
		out = append(out, Product{
			ID:          id,
			Marketplace: m.name,
			Title:       fmt.Sprintf("%s item %d", q, (page-1)*size+i+1),
			URL:         "https://example-marketplace.invalid/item/" + id,
			Price:       price,
			Currency:    "USD",
		})
	}
	out = FilterByPrice(out, f.MinPrice, f.MaxPrice)
	SortProducts(out, f.Sort)
	return out, nil
}

func (m *Mock) Detail(ctx context.Context, productID string) (ProductDetail, error) {
	select {
	case <-ctx.Done():
		return ProductDetail{}, ctx.Err()
	default:
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return ProductDetail{}, ErrNotFound
	}
	h := fnv64(id) ^ uint64(m.seed)
	price := int64(1000 + h%9000)
	return ProductDetail{
		Product: Product{
			ID:          id,
			Marketplace: m.name,
			Title:       "Synthetic product " + id,
			URL:         "https://example-marketplace.invalid/item/" + id,
			Price:       price,
			Currency:    "USD",
		},
		Description: "Synthetic description (offline mock connector).",
	}, nil
}

// fnv64 hashes a string for deterministic mock data.
func fnv64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
