// Package storage persists tracked wishlist items and their price history.
//
// The monitor consumes the Store interface; PGStore is the production
// implementation, MemStore backs tests and offline mode. Writes are atomic
// per item; nothing here requires cross-item transactions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a tracked item or wishlist row is absent.
var ErrNotFound = errors.New("storage: not found")

// ChangeType classifies a price-history entry.
type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
)

// TrackedItem is one wishlist product whose price the monitor watches.
// Prices are minor currency units (cents).
type TrackedItem struct {
	ID               string
	UserID           string
	ProductID        string
	Marketplace      string
	Title            string
	CurrentPrice     int64
	LastCheckedPrice int64
	NotifyOnDrop     bool
	AddedAt          time.Time
}

// HistoryEntry is one observed price change. Entries are append-only and
// never rewritten.
type HistoryEntry struct {
	ID            uuid.UUID
	Price         int64
	PreviousPrice int64
	ChangeType    ChangeType
	ObservedAt    time.Time
}

// WishlistItem is one saved product, tracked or not.
type WishlistItem struct {
	UserID      string
	ProductID   string
	Marketplace string
	Title       string
	AddedAt     time.Time
}

// Store is the persistence collaborator consumed by the monitor and the
// wishlist surface.
type Store interface {
	// UsersWithTrackedItems returns the distinct users owning at least one
	// tracked item.
	UsersWithTrackedItems(ctx context.Context) ([]string, error)

	// TrackedItems returns every tracked item for one user.
	TrackedItems(ctx context.Context, userID string) ([]TrackedItem, error)

	// UpdatePrice moves CurrentPrice to LastCheckedPrice and stores the new
	// current price for one item.
	UpdatePrice(ctx context.Context, userID, itemID string, newPrice int64) error

	// AppendHistory appends one immutable history entry for an item.
	AppendHistory(ctx context.Context, userID, itemID string, e HistoryEntry) error

	// Wishlist operations.
	AddWishlistItem(ctx context.Context, it WishlistItem) error
	RemoveWishlistItem(ctx context.Context, userID, productID string) error
	ListWishlist(ctx context.Context, userID string, page, perPage int) ([]WishlistItem, int, error)
}
