// Command aggregator runs the DealHunt aggregation backend core: the
// marketplace connectors, the result cache and failure circuit they share,
// and the background price monitor.
//
// Configuration is environment-first (see internal/config). With no PG_DSN
// and no marketplace credentials the process runs fully offline against the
// mock connector and an in-memory store.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/cache"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/config"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/failure"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace/aliexpress"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace/ebay"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/metrics"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/monitor"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/notify"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/ratelimit"
	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	ctx := context.Background()
	m := metrics.New()
	metrics.Serve(cfg.MetricsAddr, m)

	resultCache := cache.New(cfg.CacheTTL)
	failures := failure.New(cfg.FailureThreshold, cfg.FailureTTL)

	reg := buildRegistry(cfg, m, resultCache, failures)

	var store storage.Store
	if cfg.PGDSN != "" {
		pool, err := storage.OpenPool(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatalf("[storage] %v", err)
		}
		defer pool.Close()
		store = storage.NewPGStore(pool, cfg.PGSchema)
		log.Printf("[storage] postgres schema=%s", cfg.PGSchema)
	} else {
		store = storage.NewMemStore()
		log.Printf("[storage] in-memory (no PG_DSN)")
	}

	mon := monitor.New(store, monitor.RegistryProbe(reg), notify.LogNotifier{}, m, monitor.Options{
		Interval:    cfg.MonitorInterval,
		RetryDelay:  cfg.MonitorRetryDelay,
		DeadbandPct: cfg.MonitorDeadband,
		Workers:     cfg.MonitorWorkers,
	})
	mon.Start()

	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	log.Printf("[main] shutdown requested")
	mon.Stop()
}

// buildRegistry wires one connector per configured marketplace; with no
// credentials at all it falls back to the offline mock.
func buildRegistry(cfg config.Config, m *metrics.Metrics, rc *cache.ResultCache, ft *failure.Tracker) *marketplace.Registry {
	var clients []marketplace.Client

	if cfg.AliAppKey != "" && cfg.AliAppSecret != "" {
		clients = append(clients, aliexpress.New(aliexpress.Options{
			AppKey:     cfg.AliAppKey,
			AppSecret:  cfg.AliAppSecret,
			BaseURL:    cfg.AliBaseURL,
			TrackingID: cfg.AliTrackingID,
			Timeout:    cfg.UpstreamTimeout,
			RetryMax:   cfg.RetryMax,
			Metrics:    m,
		}, rc, ft, ratelimit.NewBucket(cfg.RequestRPS, cfg.JitterMs)))
	}
	if cfg.EbayClientID != "" && cfg.EbayClientSecret != "" {
		clients = append(clients, ebay.New(ebay.Options{
			ClientID:     cfg.EbayClientID,
			ClientSecret: cfg.EbayClientSecret,
			BaseURL:      cfg.EbayBaseURL,
			Scope:        cfg.EbayScope,
			Timeout:      cfg.UpstreamTimeout,
			RetryMax:     cfg.RetryMax,
			Metrics:      m,
		}, rc, ft, ratelimit.NewBucket(cfg.RequestRPS, cfg.JitterMs)))
	}
	if len(clients) == 0 {
		log.Printf("[main] no marketplace credentials configured, using mock connector")
		clients = append(clients, marketplace.NewMock("mock", 0))
	}

	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name())
	}
	log.Printf("[main] marketplaces: %v", names)
	return marketplace.NewRegistry(clients...)
}
