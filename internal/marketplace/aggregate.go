package marketplace

import (
	"context"
	"log"
	"sync"
)

// Aggregate fans a search out to every registered marketplace concurrently
// and merges the results. A marketplace that fails is logged and skipped so
// one broken upstream does not blank the whole search; the merged list is
// empty only when every marketplace failed or returned nothing.
func Aggregate(ctx context.Context, reg *Registry, query string, f SearchFilters) []Product {
	clients := reg.All()

	var (
		mu     sync.Mutex
		merged []Product
		wg     sync.WaitGroup
	)
	wg.Add(len(clients))
	for _, c := range clients {
		go func(c Client) {
			defer wg.Done()
			products, err := c.Search(ctx, query, f)
			if err != nil {
				log.Printf("[search] marketplace=%s query=%q failed: %v", c.Name(), query, err)
				return
			}
			mu.Lock()
			merged = append(merged, products...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	SortProducts(merged, f.Sort)
	return merged
}
