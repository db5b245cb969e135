package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on Postgres.
//
// Assumed tables (schema-qualified):
//
//	<schema>.tracked_items (
//	    id text primary key, user_id text not null, product_id text not null,
//	    marketplace text not null, title text not null,
//	    current_price bigint not null, last_checked_price bigint not null,
//	    notify_on_drop boolean not null default true,
//	    added_at timestamptz not null default now())
//	<schema>.price_history (
//	    id uuid primary key, item_id text not null, user_id text not null,
//	    price bigint not null, previous_price bigint not null,
//	    change_type text not null, observed_at timestamptz not null)
//	<schema>.wishlist_items (
//	    user_id text not null, product_id text not null,
//	    marketplace text not null, title text not null,
//	    added_at timestamptz not null default now(),
//	    primary key (user_id, product_id))
type PGStore struct {
	pool   *pgxpool.Pool
	schema string
}

// OpenPool connects a pgx pool with sane defaults.
func OpenPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 55 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func NewPGStore(pool *pgxpool.Pool, schema string) *PGStore {
	if schema == "" {
		schema = "public"
	}
	return &PGStore{pool: pool, schema: schema}
}

func (s *PGStore) UsersWithTrackedItems(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT user_id FROM %q.tracked_items ORDER BY user_id`, s.schema)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("users with tracked items: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PGStore) TrackedItems(ctx context.Context, userID string) ([]TrackedItem, error) {
	q := fmt.Sprintf(`
		SELECT id, user_id, product_id, marketplace, title,
		       current_price, last_checked_price, notify_on_drop, added_at
		  FROM %q.tracked_items
		 WHERE user_id = $1
		 ORDER BY added_at`, s.schema)
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("tracked items: %w", err)
	}
	defer rows.Close()

	var out []TrackedItem
	for rows.Next() {
		var it TrackedItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Marketplace, &it.Title,
			&it.CurrentPrice, &it.LastCheckedPrice, &it.NotifyOnDrop, &it.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdatePrice(ctx context.Context, userID, itemID string, newPrice int64) error {
	q := fmt.Sprintf(`
		UPDATE %q.tracked_items
		   SET last_checked_price = current_price, current_price = $3
		 WHERE user_id = $1 AND id = $2`, s.schema)
	tag, err := s.pool.Exec(ctx, q, userID, itemID, newPrice)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AppendHistory(ctx context.Context, userID, itemID string, e HistoryEntry) error {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	q := fmt.Sprintf(`
		INSERT INTO %q.price_history
		       (id, item_id, user_id, price, previous_price, change_type, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.schema)
	_, err := s.pool.Exec(ctx, q, id, itemID, userID, e.Price, e.PreviousPrice, string(e.ChangeType), e.ObservedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PGStore) AddWishlistItem(ctx context.Context, it WishlistItem) error {
	q := fmt.Sprintf(`
		INSERT INTO %q.wishlist_items (user_id, product_id, marketplace, title, added_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (user_id, product_id) DO NOTHING`, s.schema)
	var added *time.Time
	if !it.AddedAt.IsZero() {
		added = &it.AddedAt
	}
	if _, err := s.pool.Exec(ctx, q, it.UserID, it.ProductID, it.Marketplace, it.Title, added); err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (s *PGStore) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	q := fmt.Sprintf(`DELETE FROM %q.wishlist_items WHERE user_id = $1 AND product_id = $2`, s.schema)
	tag, err := s.pool.Exec(ctx, q, userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListWishlist(ctx context.Context, userID string, page, perPage int) ([]WishlistItem, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	var total int
	countQ := fmt.Sprintf(`SELECT count(*) FROM %q.wishlist_items WHERE user_id = $1`, s.schema)
	if err := s.pool.QueryRow(ctx, countQ, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wishlist: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT user_id, product_id, marketplace, title, added_at
		  FROM %q.wishlist_items
		 WHERE user_id = $1
		 ORDER BY added_at, product_id
		 LIMIT $2 OFFSET $3`, s.schema)
	rows, err := s.pool.Query(ctx, q, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out := make([]WishlistItem, 0, perPage)
	for rows.Next() {
		var it WishlistItem
		if err := rows.Scan(&it.UserID, &it.ProductID, &it.Marketplace, &it.Title, &it.AddedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}
