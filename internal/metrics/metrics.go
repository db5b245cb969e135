// Package metrics exposes process counters in Prometheus text exposition
// format on a plain HTTP endpoint.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Metrics is a mutex-guarded counter set. All methods are safe for
// concurrent use.
type Metrics struct {
	mu sync.Mutex

	upstreamByCode map[string]map[int]int64 // marketplace -> http code -> count
	cacheHits      int64
	cacheMisses    int64
	circuitOpens   int64
	monitorTicks   int64
	priceDrops     int64
	priceIncreases int64
	notifySent     int64
	notifyFailed   int64
}

func New() *Metrics {
	return &Metrics{upstreamByCode: make(map[string]map[int]int64)}
}

func (m *Metrics) RecordUpstream(marketplaceName string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCode := m.upstreamByCode[marketplaceName]
	if byCode == nil {
		byCode = make(map[int]int64)
		m.upstreamByCode[marketplaceName] = byCode
	}
	byCode[code]++
}

func (m *Metrics) RecordCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *Metrics) RecordCircuitOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitOpens++
}

func (m *Metrics) RecordTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitorTicks++
}

func (m *Metrics) RecordPriceChange(decrease bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if decrease {
		m.priceDrops++
	} else {
		m.priceIncreases++
	}
}

func (m *Metrics) RecordNotify(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.notifySent++
	} else {
		m.notifyFailed++
	}
}

// render writes the exposition text.
func (m *Metrics) render(w http.ResponseWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	names := make([]string, 0, len(m.upstreamByCode))
	for name := range m.upstreamByCode {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		codes := make([]int, 0, len(m.upstreamByCode[name]))
		for c := range m.upstreamByCode[name] {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		for _, c := range codes {
			fmt.Fprintf(w, "dealhunt_upstream_requests_total{marketplace=%q,code=\"%d\"} %d\n", name, c, m.upstreamByCode[name][c])
		}
	}
	fmt.Fprintf(w, "dealhunt_cache_hits_total %d\n", m.cacheHits)
	fmt.Fprintf(w, "dealhunt_cache_misses_total %d\n", m.cacheMisses)
	fmt.Fprintf(w, "dealhunt_circuit_opens_total %d\n", m.circuitOpens)
	fmt.Fprintf(w, "dealhunt_monitor_ticks_total %d\n", m.monitorTicks)
	fmt.Fprintf(w, "dealhunt_price_drops_total %d\n", m.priceDrops)
	fmt.Fprintf(w, "dealhunt_price_increases_total %d\n", m.priceIncreases)
	fmt.Fprintf(w, "dealhunt_notifications_sent_total %d\n", m.notifySent)
	fmt.Fprintf(w, "dealhunt_notifications_failed_total %d\n", m.notifyFailed)
}

// Serve starts the /metrics endpoint in a background goroutine. Empty addr
// disables it.
func Serve(addr string, m *Metrics) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		m.render(w)
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server: %v", err)
		}
	}()
}
