// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is populated once at process start and passed by value to
// constructors. Credentials stay empty in offline/mock mode.
type Config struct {
	// AliExpress affiliate API
	AliAppKey     string `env:"ALIEXPRESS_APP_KEY"`
	AliAppSecret  string `env:"ALIEXPRESS_APP_SECRET"`
	AliBaseURL    string `env:"ALIEXPRESS_BASE_URL" envDefault:"https://api-sg.aliexpress.com/sync"`
	AliTrackingID string `env:"ALIEXPRESS_TRACKING_ID" envDefault:"default"`

	// eBay Browse API
	EbayClientID     string `env:"EBAY_CLIENT_ID"`
	EbayClientSecret string `env:"EBAY_CLIENT_SECRET"`
	EbayBaseURL      string `env:"EBAY_BASE_URL" envDefault:"https://api.ebay.com"`
	EbayScope        string `env:"EBAY_SCOPE" envDefault:"https://api.ebay.com/oauth/api_scope"`

	// Persistence. Empty DSN selects the in-memory store and mock connectors.
	PGDSN      string `env:"PG_DSN"`
	PGSchema   string `env:"PG_SCHEMA" envDefault:"public"`
	PGMaxConns int32  `env:"PG_MAX_CONNS" envDefault:"8"`

	// Upstream call behavior
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"20s"`
	RequestRPS      float64       `env:"REQUEST_RPS" envDefault:"8"`
	RetryMax        int           `env:"RETRY_MAX" envDefault:"3"`
	JitterMs        int           `env:"JITTER_MS" envDefault:"150"`

	// Cache / failure tracking
	CacheTTL         time.Duration `env:"CACHE_TTL" envDefault:"300s"`
	FailureTTL       time.Duration `env:"FAILURE_TTL" envDefault:"1800s"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"3"`

	// Price monitor
	MonitorInterval   time.Duration `env:"MONITOR_INTERVAL" envDefault:"3600s"`
	MonitorRetryDelay time.Duration `env:"MONITOR_RETRY_DELAY" envDefault:"300s"`
	MonitorDeadband   float64       `env:"MONITOR_DEADBAND_PCT" envDefault:"1.0"`
	MonitorWorkers    int           `env:"MONITOR_WORKERS" envDefault:"4"`

	// Operational
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`
	Verbose     bool   `env:"VERBOSE" envDefault:"false"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 20 * time.Second
	}
	if cfg.MonitorWorkers <= 0 {
		cfg.MonitorWorkers = 1
	}
	return cfg, nil
}
