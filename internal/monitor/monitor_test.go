package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/notify"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/storage"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []struct {
		userID string
		drops  []notify.PriceDrop
	}
	err error
}

func (f *fakeNotifier) SendPriceDropBatch(ctx context.Context, userID string, drops []notify.PriceDrop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct {
		userID string
		drops  []notify.PriceDrop
	}{userID, drops})
	return f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProbe struct {
	mu     sync.Mutex
	prices map[string]int64
	errs   map[string]error
}

func (f *fakeProbe) probe(ctx context.Context, marketplaceName, productID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[productID]; ok {
		return 0, err
	}
	return f.prices[productID], nil
}

func newMonitor(store storage.Store, probe PriceProbe, n notify.Notifier, opts Options) *Monitor {
	return New(store, probe, n, nil, opts)
}

func TestClassifyDeadband(t *testing.T) {
	deadband := decimal.NewFromFloat(0.01)

	tests := []struct {
		name     string
		old, new int64
		want     storage.ChangeType
		ok       bool
	}{
		{"no change", 10000, 10000, "", false},
		{"0.5% drop ignored", 10000, 9950, "", false},
		{"exactly 1% ignored", 10000, 9900, "", false},
		{"2% drop", 10000, 9800, storage.ChangeDecrease, true},
		{"2% rise", 10000, 10200, storage.ChangeIncrease, true},
		{"no previous price", 0, 5000, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.old, tt.new, deadband)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTickRecordsChangeAndBatchesNotification(t *testing.T) {
	store := storage.NewMemStore()
	for _, item := range []struct {
		id    string
		price int64
	}{{"i1", 10000}, {"i2", 5000}, {"i3", 2000}} {
		store.PutTrackedItem(storage.TrackedItem{
			ID: item.id, UserID: "u1", ProductID: "p" + item.id,
			Marketplace: "mock", Title: "item " + item.id,
			CurrentPrice: item.price, NotifyOnDrop: true,
		})
	}
	probe := &fakeProbe{prices: map[string]int64{
		"pi1": 9000, // -10%
		"pi2": 4500, // -10%
		"pi3": 1800, // -10%
	}}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})

	require.NoError(t, m.Tick(context.Background()))

	// Exactly one notification containing all three drops.
	require.Equal(t, 1, n.callCount())
	assert.Equal(t, "u1", n.calls[0].userID)
	assert.Len(t, n.calls[0].drops, 3)

	// History entries appended, prices updated.
	hist := store.History("u1", "i1")
	require.Len(t, hist, 1)
	assert.Equal(t, storage.ChangeDecrease, hist[0].ChangeType)
	assert.Equal(t, int64(9000), hist[0].Price)
	assert.Equal(t, int64(10000), hist[0].PreviousPrice)

	items, _ := store.TrackedItems(context.Background(), "u1")
	assert.Equal(t, int64(9000), items[0].CurrentPrice)
	assert.Equal(t, int64(10000), items[0].LastCheckedPrice)
}

func TestTickIdempotentWhenPricesUnchanged(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "pi1", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	probe := &fakeProbe{prices: map[string]int64{"pi1": 9000}}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})
	ctx := context.Background()

	require.NoError(t, m.Tick(ctx))
	require.Len(t, store.History("u1", "i1"), 1)
	require.Equal(t, 1, n.callCount())

	// Second tick at the same price: no new history, no new notification.
	require.NoError(t, m.Tick(ctx))
	assert.Len(t, store.History("u1", "i1"), 1)
	assert.Equal(t, 1, n.callCount())
}

func TestTickDeadbandSuppressesJitter(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "pi1", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	probe := &fakeProbe{prices: map[string]int64{"pi1": 9950}} // 0.5%
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Empty(t, store.History("u1", "i1"))
	assert.Equal(t, 0, n.callCount())

	items, _ := store.TrackedItems(context.Background(), "u1")
	assert.Equal(t, int64(10000), items[0].CurrentPrice)
}

func TestTickIncreaseRecordedButNotNotified(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "pi1", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	probe := &fakeProbe{prices: map[string]int64{"pi1": 12000}}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})

	require.NoError(t, m.Tick(context.Background()))
	hist := store.History("u1", "i1")
	require.Len(t, hist, 1)
	assert.Equal(t, storage.ChangeIncrease, hist[0].ChangeType)
	assert.Equal(t, 0, n.callCount())
}

func TestTickRespectsNotifyPreference(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "pi1", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: false,
	})
	probe := &fakeProbe{prices: map[string]int64{"pi1": 8000}}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})

	require.NoError(t, m.Tick(context.Background()))
	// Change is still recorded, notification is suppressed.
	assert.Len(t, store.History("u1", "i1"), 1)
	assert.Equal(t, 0, n.callCount())
}

func TestTickProbeFailureIsolation(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "bad", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i2", UserID: "u1", ProductID: "good", Marketplace: "mock",
		CurrentPrice: 5000, NotifyOnDrop: true,
	})
	probe := &fakeProbe{
		prices: map[string]int64{"good": 4000},
		errs:   map[string]error{"bad": errors.New("upstream down")},
	}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Empty(t, store.History("u1", "i1"))
	assert.Len(t, store.History("u1", "i2"), 1)
	require.Equal(t, 1, n.callCount())
	assert.Len(t, n.calls[0].drops, 1)
}

func TestTickMultipleUsersIsolated(t *testing.T) {
	store := storage.NewMemStore()
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i1", UserID: "u1", ProductID: "p1", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	store.PutTrackedItem(storage.TrackedItem{
		ID: "i2", UserID: "u2", ProductID: "p2", Marketplace: "mock",
		CurrentPrice: 10000, NotifyOnDrop: true,
	})
	probe := &fakeProbe{prices: map[string]int64{"p1": 9000, "p2": 8500}}
	n := &fakeNotifier{}
	m := newMonitor(store, probe.probe, n, Options{Workers: 4})

	require.NoError(t, m.Tick(context.Background()))
	require.Equal(t, 2, n.callCount())
}

func TestStartStopPrompt(t *testing.T) {
	store := storage.NewMemStore()
	probe := &fakeProbe{prices: map[string]int64{}}
	m := newMonitor(store, probe.probe, &fakeNotifier{}, Options{Interval: time.Hour})

	m.Start()
	assert.True(t, m.Running())
	m.Start() // no-op

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly; it must not wait out the interval")
	}
	assert.False(t, m.Running())

	m.Stop() // stopping a stopped monitor is a no-op
}
