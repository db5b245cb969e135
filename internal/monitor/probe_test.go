package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
)

func TestRegistryProbe(t *testing.T) {
	reg := marketplace.NewRegistry(marketplace.NewMock("mock", 7))
	probe := RegistryProbe(reg)

	price, err := probe(context.Background(), "mock", "12345")
	require.NoError(t, err)
	assert.Greater(t, price, int64(0))

	_, err = probe(context.Background(), "amazon", "12345")
	assert.ErrorIs(t, err, marketplace.ErrUnsupportedMarketplace)
}
