// Package monitor runs the background price-check loop over tracked
// wishlist items.
//
// One long-lived goroutine ticks at a fixed interval; a tick never runs
// concurrently with itself. Stop is cooperative: it is observed between
// ticks and never interrupts a tick in progress, but the interval wait is
// abandoned immediately so Stop does not block for a full interval.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/metrics"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/notify"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/storage"
)

const (
	DefaultInterval   = 3600 * time.Second
	DefaultRetryDelay = 300 * time.Second
	// DefaultDeadbandPct is the minimum percentage change recorded; smaller
	// moves are treated as price jitter and ignored.
	DefaultDeadbandPct = 1.0
)

// PriceProbe returns the current price in cents for one tracked product.
// Marketplaces without a synchronous detail call plug in their own probe.
type PriceProbe func(ctx context.Context, marketplaceName, productID string) (int64, error)

// Options tunes a Monitor. Zero values fall back to defaults.
type Options struct {
	Interval    time.Duration
	RetryDelay  time.Duration
	DeadbandPct float64
	Workers     int
}

// Monitor polls tracked items, records price changes, and dispatches one
// batched drop notification per user per tick.
type Monitor struct {
	store    storage.Store
	probe    PriceProbe
	notifier notify.Notifier
	metrics  *metrics.Metrics

	interval   time.Duration
	retryDelay time.Duration
	deadband   decimal.Decimal // fraction, e.g. 0.01
	workers    int

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	now func() time.Time
}

func New(store storage.Store, probe PriceProbe, notifier notify.Notifier, m *metrics.Metrics, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	pct := opts.DeadbandPct
	if pct <= 0 {
		pct = DefaultDeadbandPct
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Monitor{
		store:      store,
		probe:      probe,
		notifier:   notifier,
		metrics:    m,
		interval:   interval,
		retryDelay: retry,
		deadband:   decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)),
		workers:    workers,
		now:        time.Now,
	}
}

// Start launches the loop. Starting a running monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	log.Printf("[monitor] started interval=%s", m.interval)
}

// Stop requests shutdown and waits for the loop to exit. An in-progress
// tick completes; the interval wait is abandoned.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	log.Printf("[monitor] stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(stop, done chan struct{}) {
	defer close(done)
	for {
		delay := m.interval
		if err := m.Tick(context.Background()); err != nil {
			// A failed tick retries sooner than the full interval; the loop
			// itself never terminates except on explicit stop.
			log.Printf("[monitor] tick failed, retrying in %s: %v", m.retryDelay, err)
			delay = m.retryDelay
		}
		select {
		case <-time.After(delay):
		case <-stop:
			return
		}
	}
}

// Tick runs one full check cycle. Exported so operational tooling and tests
// can force a cycle without waiting for the interval.
func (m *Monitor) Tick(ctx context.Context) error {
	if m.metrics != nil {
		m.metrics.RecordTick()
	}
	users, err := m.store.UsersWithTrackedItems(ctx)
	if err != nil {
		return fmt.Errorf("enumerate users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	workers := m.workers
	if workers > len(users) {
		workers = len(users)
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(shard int) {
			defer wg.Done()
			for i := shard; i < len(users); i += workers {
				// Partial-failure isolation: one user's failure never aborts
				// the tick for the others.
				if err := m.checkUser(ctx, users[i]); err != nil {
					log.Printf("[monitor] user=%s check failed: %v", users[i], err)
				}
			}
		}(w)
	}
	wg.Wait()
	return nil
}

func (m *Monitor) checkUser(ctx context.Context, userID string) error {
	items, err := m.store.TrackedItems(ctx, userID)
	if err != nil {
		return fmt.Errorf("tracked items: %w", err)
	}

	var drops []notify.PriceDrop
	notifyAllowed := false
	for _, it := range items {
		newPrice, err := m.probe(ctx, it.Marketplace, it.ProductID)
		if err != nil {
			// Converted into "no price change this tick", never a fault.
			log.Printf("[monitor] user=%s item=%s probe failed: %v", userID, it.ID, err)
			continue
		}
		if newPrice <= 0 {
			// No reliable price extracted; do not emit change events on it.
			continue
		}

		change, ok := classify(it.CurrentPrice, newPrice, m.deadband)
		if !ok {
			continue
		}

		entry := storage.HistoryEntry{
			ID:            uuid.New(),
			Price:         newPrice,
			PreviousPrice: it.CurrentPrice,
			ChangeType:    change,
			ObservedAt:    m.now().UTC(),
		}
		if err := m.store.AppendHistory(ctx, userID, it.ID, entry); err != nil {
			log.Printf("[monitor] user=%s item=%s history append failed: %v", userID, it.ID, err)
			continue
		}
		if err := m.store.UpdatePrice(ctx, userID, it.ID, newPrice); err != nil {
			log.Printf("[monitor] user=%s item=%s price update failed: %v", userID, it.ID, err)
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordPriceChange(change == storage.ChangeDecrease)
		}

		if change == storage.ChangeDecrease && it.NotifyOnDrop {
			notifyAllowed = true
			drops = append(drops, notify.PriceDrop{
				Title:    it.Title,
				OldPrice: it.CurrentPrice,
				NewPrice: newPrice,
			})
		}
	}

	// One batched notification per user per tick, never one per item.
	if notifyAllowed && len(drops) > 0 && m.notifier != nil {
		if err := m.notifier.SendPriceDropBatch(ctx, userID, drops); err != nil {
			// Best-effort dispatch: logged and dropped, no retry queue.
			log.Printf("[monitor] user=%s notification dispatch failed: %v", userID, err)
			if m.metrics != nil {
				m.metrics.RecordNotify(false)
			}
		} else if m.metrics != nil {
			m.metrics.RecordNotify(true)
		}
	}
	return nil
}

// classify compares prices against the dead-band. ok is false when the move
// is inside the dead-band (including no move at all) or when there is no
// previous price to compare against.
func classify(oldPrice, newPrice int64, deadband decimal.Decimal) (storage.ChangeType, bool) {
	if oldPrice <= 0 || newPrice == oldPrice {
		return "", false
	}
	diff := decimal.NewFromInt(newPrice - oldPrice)
	delta := diff.Abs().Div(decimal.NewFromInt(oldPrice))
	if !delta.GreaterThan(deadband) {
		return "", false
	}
	if newPrice < oldPrice {
		return storage.ChangeDecrease, true
	}
	return storage.ChangeIncrease, true
}
