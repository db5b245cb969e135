package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
)

func sample(id string, price int64) []marketplace.Product {
	return []marketplace.Product{{ID: id, Marketplace: "mock", Title: "t", Price: price}}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(0)

	_, ok := c.Get("shoes")
	assert.False(t, ok)

	c.Set("shoes", sample("p1", 1999))
	got, ok := c.Get("shoes")
	require.True(t, ok)
	assert.Equal(t, "p1", got[0].ID)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(0)
	c.Set("shoes", []marketplace.Product{
		{ID: "p1", Price: 100},
		{ID: "p2", Price: 200},
	})

	got, ok := c.Get("shoes")
	require.True(t, ok)
	got[0].ID = "mutated"

	again, ok := c.Get("shoes")
	require.True(t, ok)
	require.Len(t, again, 2)
	assert.Equal(t, "p1", again[0].ID)
}

func TestKeyNormalization(t *testing.T) {
	c := New(0)
	c.Set("shoes", sample("p1", 1999))

	got, ok := c.Get("  Shoes ")
	require.True(t, ok)
	assert.Equal(t, "p1", got[0].ID)

	assert.Equal(t, Key("Laptop "), Key("laptop"))
	assert.NotEqual(t, Key("laptop"), Key("desktop"))
}

func TestTTLExpiry(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.SetTTL("shoes", sample("p1", 1999), time.Second)

	_, ok := c.Get("shoes")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Stats().Valid)

	now = now.Add(1100 * time.Millisecond)
	_, ok = c.Get("shoes")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Valid)
}

func TestClearExpired(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.SetTTL("a", sample("p1", 100), time.Second)
	c.SetTTL("b", sample("p2", 200), time.Minute)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.ClearExpired())

	st := c.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Valid)
	assert.Equal(t, 0, st.Expired)
}

func TestClearAll(t *testing.T) {
	c := New(0)
	c.Set("a", sample("p1", 100))
	c.Set("b", sample("p2", 200))
	c.ClearAll()
	assert.Equal(t, 0, c.Stats().Total)
}

func TestStatsCountsExpiredUntilSwept(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.SetTTL("a", sample("p1", 100), time.Second)
	now = now.Add(2 * time.Second)

	st := c.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 0, st.Valid)
	assert.Equal(t, 1, st.Expired)
}
