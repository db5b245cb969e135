package monitor

import (
	"context"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
)

// RegistryProbe builds a PriceProbe over the marketplace registry's detail
// lookups.
func RegistryProbe(reg *marketplace.Registry) PriceProbe {
	return func(ctx context.Context, marketplaceName, productID string) (int64, error) {
		client, err := reg.Get(marketplaceName)
		if err != nil {
			return 0, err
		}
		detail, err := client.Detail(ctx, productID)
		if err != nil {
			return 0, err
		}
		return detail.Price, nil
	}
}
