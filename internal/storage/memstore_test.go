package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreTrackedItems(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	users, err := s.UsersWithTrackedItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	s.PutTrackedItem(TrackedItem{ID: "i1", UserID: "u1", ProductID: "p1", CurrentPrice: 1000})
	s.PutTrackedItem(TrackedItem{ID: "i2", UserID: "u2", ProductID: "p2", CurrentPrice: 2000})

	users, err = s.UsersWithTrackedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	items, err := s.TrackedItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), items[0].CurrentPrice)
}

func TestMemStoreUpdatePrice(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	s.PutTrackedItem(TrackedItem{ID: "i1", UserID: "u1", CurrentPrice: 1000})

	require.NoError(t, s.UpdatePrice(ctx, "u1", "i1", 900))
	items, _ := s.TrackedItems(ctx, "u1")
	assert.Equal(t, int64(900), items[0].CurrentPrice)
	assert.Equal(t, int64(1000), items[0].LastCheckedPrice)

	assert.ErrorIs(t, s.UpdatePrice(ctx, "u1", "missing", 1), ErrNotFound)
}

func TestMemStoreHistoryAppendOnly(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	e1 := HistoryEntry{ID: uuid.New(), Price: 900, PreviousPrice: 1000, ChangeType: ChangeDecrease, ObservedAt: time.Now()}
	e2 := HistoryEntry{ID: uuid.New(), Price: 950, PreviousPrice: 900, ChangeType: ChangeIncrease, ObservedAt: time.Now()}
	require.NoError(t, s.AppendHistory(ctx, "u1", "i1", e1))
	require.NoError(t, s.AppendHistory(ctx, "u1", "i1", e2))

	got := s.History("u1", "i1")
	require.Len(t, got, 2)
	assert.Equal(t, e1.ID, got[0].ID)
	assert.Equal(t, e2.ID, got[1].ID)
}

func TestMemStoreWishlist(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, pid := range []string{"p1", "p2", "p3"} {
		require.NoError(t, s.AddWishlistItem(ctx, WishlistItem{
			UserID: "u1", ProductID: pid, Marketplace: "mock",
			AddedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Idempotent add.
	require.NoError(t, s.AddWishlistItem(ctx, WishlistItem{UserID: "u1", ProductID: "p1"}))

	got, total, err := s.ListWishlist(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ProductID)

	got, _, err = s.ListWishlist(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p3", got[0].ProductID)

	require.NoError(t, s.RemoveWishlistItem(ctx, "u1", "p2"))
	assert.ErrorIs(t, s.RemoveWishlistItem(ctx, "u1", "p2"), ErrNotFound)
}
