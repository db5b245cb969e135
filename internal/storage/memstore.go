package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and offline mode.
type MemStore struct {
	mu       sync.Mutex
	items    map[string][]TrackedItem           // userID -> items
	history  map[string][]HistoryEntry          // userID+"/"+itemID -> entries
	wishlist map[string]map[string]WishlistItem // userID -> productID -> item
}

func NewMemStore() *MemStore {
	return &MemStore{
		items:    make(map[string][]TrackedItem),
		history:  make(map[string][]HistoryEntry),
		wishlist: make(map[string]map[string]WishlistItem),
	}
}

// PutTrackedItem seeds or replaces a tracked item. Test/bootstrap helper.
func (s *MemStore) PutTrackedItem(it TrackedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[it.UserID]
	for i := range list {
		if list[i].ID == it.ID {
			list[i] = it
			return
		}
	}
	s.items[it.UserID] = append(list, it)
}

func (s *MemStore) UsersWithTrackedItems(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.items))
	for u, list := range s.items {
		if len(list) > 0 {
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemStore) TrackedItems(ctx context.Context, userID string) ([]TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedItem, len(s.items[userID]))
	copy(out, s.items[userID])
	return out, nil
}

func (s *MemStore) UpdatePrice(ctx context.Context, userID, itemID string, newPrice int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[userID]
	for i := range list {
		if list[i].ID == itemID {
			list[i].LastCheckedPrice = list[i].CurrentPrice
			list[i].CurrentPrice = newPrice
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) AppendHistory(ctx context.Context, userID, itemID string, e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "/" + itemID
	s.history[k] = append(s.history[k], e)
	return nil
}

// History returns the appended entries for one item. Test helper.
func (s *MemStore) History(userID, itemID string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "/" + itemID
	out := make([]HistoryEntry, len(s.history[k]))
	copy(out, s.history[k])
	return out
}

func (s *MemStore) AddWishlistItem(ctx context.Context, it WishlistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.AddedAt.IsZero() {
		it.AddedAt = time.Now().UTC()
	}
	m := s.wishlist[it.UserID]
	if m == nil {
		m = make(map[string]WishlistItem)
		s.wishlist[it.UserID] = m
	}
	if _, ok := m[it.ProductID]; ok {
		return nil // idempotent add
	}
	m[it.ProductID] = it
	return nil
}

func (s *MemStore) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.wishlist[userID]
	if _, ok := m[productID]; !ok {
		return ErrNotFound
	}
	delete(m, productID)
	return nil
}

func (s *MemStore) ListWishlist(ctx context.Context, userID string, page, perPage int) ([]WishlistItem, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]WishlistItem, 0, len(s.wishlist[userID]))
	for _, it := range s.wishlist[userID] {
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].AddedAt.Equal(all[j].AddedAt) {
			return all[i].ProductID < all[j].ProductID
		}
		return all[i].AddedAt.Before(all[j].AddedAt)
	})

	total := len(all)
	start := (page - 1) * perPage
	if start >= total {
		return []WishlistItem{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
