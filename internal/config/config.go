// Package config defines the structured configuration for the skin arbitrage
// bot and provides validation helpers. Configuration is split across four
// TOML files in the config directory (settings, scrapers, api_keys,
// search_filters); secrets come exclusively from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfigueredo/skinarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from the
// TOML files and then optionally overridden by BOT_* environment variables.
type Config struct {
	Settings      SettingsConfig           `toml:"settings"`
	Proxy         ProxyConfig              `toml:"proxy"`
	Cache         CacheConfig              `toml:"cache"`
	Profitability ProfitabilityConfig      `toml:"profitability"`
	Archive       ArchiveConfig            `toml:"archive"`
	Scrapers      map[string]ScraperConfig `toml:"scrapers"`
	Filters       map[string]SearchFilter  `toml:"filters"`
}

// SettingsConfig holds global knobs.
type SettingsConfig struct {
	LogLevel           string   `toml:"log_level"`
	Timeout            duration `toml:"timeout"`
	MaxRetries         int      `toml:"max_retries"`
	RetryBackoffBase   duration `toml:"retry_backoff_base"`
	RetryBackoffCap    duration `toml:"retry_backoff_cap"`
	MaxConcurrency     int      `toml:"max_concurrency"`
	MinConcurrency     int      `toml:"min_concurrency"`
	MemoryFactor       float64  `toml:"memory_factor"`
	EnvironmentFactor  float64  `toml:"environment_factor"`
	AdapterTimeout     duration `toml:"adapter_timeout"`
	ScrapeInterval     duration `toml:"scrape_interval"`
	UseProxy           bool     `toml:"use_proxy"`
	CacheEnabled       bool     `toml:"cache_enabled"`
	MaxConnections     int      `toml:"max_connections"`
	MaxConnsPerHost    int      `toml:"max_connections_per_host"`
	SteamMaxConcurrent int      `toml:"steam_max_concurrent"`
}

// ProxyConfig holds proxy-vendor parameters. The auth and order tokens are
// resolved from OCULUS_AUTH_TOKEN / OCULUS_ORDER_TOKEN at load time and are
// never written back to disk.
type ProxyConfig struct {
	Enabled        bool     `toml:"enabled"`
	Pools          int      `toml:"pools"`
	ProxiesPerPool int      `toml:"proxies_per_pool"`
	Regions        []string `toml:"regions"`
	ErrorThreshold int      `toml:"error_threshold"`
	APIURL         string   `toml:"api_url"`
	IPServices     []string `toml:"ip_services"`

	AuthToken  string `toml:"-"`
	OrderToken string `toml:"-"`
}

// CacheConfig holds the in-process KV cache and image cache knobs.
type CacheConfig struct {
	MemoryLimitItems int      `toml:"memory_limit_items"`
	TTL              duration `toml:"ttl"`
	SweepInterval    duration `toml:"sweep_interval"`
	ImportImageTree  string   `toml:"import_image_tree"`
}

// ProfitabilityConfig holds the arbitrage engine defaults. A selected search
// filter preset overrides MinProfitPercentage and MinPrice.
type ProfitabilityConfig struct {
	Mode                string   `toml:"mode"`
	MinProfitPercentage float64  `toml:"min_profit_percentage"`
	MinPrice            float64  `toml:"min_price"`
	MaxResults          int      `toml:"max_results"`
	CacheTTL            duration `toml:"cache_ttl"`
}

// ArchiveConfig holds the optional S3-compatible cold-storage settings.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScraperConfig holds per-adapter overrides.
type ScraperConfig struct {
	Enabled        bool              `toml:"enabled"`
	UseProxy       bool              `toml:"use_proxy"`
	Timeout        duration          `toml:"timeout"`
	MaxRetries     int               `toml:"max_retries"`
	RatePerMinute  int               `toml:"rate_per_minute"`
	Burst          int               `toml:"burst"`
	Interval       duration          `toml:"interval"`
	RequiresAPIKey bool              `toml:"requires_api_key"`
	AntiBot        bool              `toml:"anti_bot"`
	Dynamic        bool              `toml:"dynamic"`
	Headers        map[string]string `toml:"headers"`

	// Venue-specific tuning knobs, exposed as configuration rather than
	// hard-wired in adapter code.
	BonusRate      float64 `toml:"bonus_rate"`
	ConversionRate float64 `toml:"conversion_rate"`
	MaxPages       int     `toml:"max_pages"`
	PageSize       int     `toml:"page_size"`
	BatchSize      int     `toml:"batch_size"`
}

// SearchFilter is a named preset for opportunity filtering. When selected it
// wins over the profitability engine defaults.
type SearchFilter struct {
	MinProfitPercentage float64  `toml:"min_profit_percentage"`
	MinPrice            float64  `toml:"min_price"`
	MaxPrice            float64  `toml:"max_price"`
	Platforms           []string `toml:"platforms"`
	Query               string   `toml:"query"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. Every
// venue in the closed set gets a scraper entry so a missing scrapers.toml
// still yields a runnable configuration.
func Defaults() Config {
	scrapers := make(map[string]ScraperConfig, len(domain.AllVenues))
	for _, v := range domain.AllVenues {
		scrapers[string(v)] = ScraperConfig{
			Enabled:       true,
			Timeout:       duration{30 * time.Second},
			MaxRetries:    5,
			RatePerMinute: 60,
			Burst:         10,
			Interval:      duration{60 * time.Second},
			PageSize:      100,
			MaxPages:      50,
		}
	}

	// Venue-specific defaults mirroring each marketplace's observed limits.
	tune := func(name string, fn func(*ScraperConfig)) {
		sc := scrapers[name]
		fn(&sc)
		scrapers[name] = sc
	}
	tune("waxpeer", func(sc *ScraperConfig) { sc.RatePerMinute = 120; sc.Burst = 20 })
	tune("skinport", func(sc *ScraperConfig) { sc.RatePerMinute = 120; sc.Burst = 20 })
	tune("bitskins", func(sc *ScraperConfig) { sc.RatePerMinute = 100; sc.Burst = 15 })
	tune("csdeals", func(sc *ScraperConfig) { sc.RatePerMinute = 30; sc.Burst = 5 })
	tune("cstrade", func(sc *ScraperConfig) {
		sc.RatePerMinute = 20
		sc.Burst = 3
		sc.BonusRate = 0.50
	})
	tune("empire", func(sc *ScraperConfig) {
		sc.RatePerMinute = 60
		sc.Burst = 10
		sc.ConversionRate = 0.6154
		sc.RequiresAPIKey = true
	})
	tune("shadowpay", func(sc *ScraperConfig) {
		sc.RatePerMinute = 80
		sc.Burst = 10
		sc.RequiresAPIKey = true
	})
	tune("skindeck", func(sc *ScraperConfig) { sc.RequiresAPIKey = true })
	tune("lisskins", func(sc *ScraperConfig) {
		// Single very large JSON export; one slow request at a time.
		sc.RatePerMinute = 10
		sc.Burst = 1
		sc.Timeout = duration{60 * time.Second}
	})
	tune("manncostore", func(sc *ScraperConfig) { sc.AntiBot = true })
	tune("rapidskins", func(sc *ScraperConfig) { sc.Dynamic = true })
	tune("steam_listing", func(sc *ScraperConfig) {
		sc.PageSize = 10
		sc.MaxPages = 1000
		sc.Timeout = duration{60 * time.Second}
	})
	tune("steam_market", func(sc *ScraperConfig) { sc.BatchSize = 50 })
	tune("steamid", func(sc *ScraperConfig) { sc.AntiBot = true; sc.BatchSize = 50 })

	return Config{
		Settings: SettingsConfig{
			LogLevel:           "info",
			Timeout:            duration{30 * time.Second},
			MaxRetries:         5,
			RetryBackoffBase:   duration{time.Second},
			RetryBackoffCap:    duration{30 * time.Second},
			MaxConcurrency:     16,
			MinConcurrency:     2,
			MemoryFactor:       1.0,
			EnvironmentFactor:  1.0,
			AdapterTimeout:     duration{10 * time.Minute},
			ScrapeInterval:     duration{5 * time.Minute},
			UseProxy:           false,
			CacheEnabled:       true,
			MaxConnections:     100,
			MaxConnsPerHost:    30,
			SteamMaxConcurrent: 5,
		},
		Proxy: ProxyConfig{
			Enabled:        false,
			Pools:          5,
			ProxiesPerPool: 1000,
			Regions: []string{
				"us", "gb", "de", "ca", "au", "fr", "nl", "jp", "sg", "br",
			},
			ErrorThreshold: 5,
			APIURL:         "https://api.oculusproxies.com/v1/configure/proxy/getProxies",
			IPServices: []string{
				"https://api.ipify.org?format=json",
				"https://httpbin.org/ip",
				"https://api.myip.com",
			},
		},
		Cache: CacheConfig{
			MemoryLimitItems: 1000,
			TTL:              duration{5 * time.Minute},
			SweepInterval:    duration{time.Minute},
		},
		Profitability: ProfitabilityConfig{
			Mode:                "complete",
			MinProfitPercentage: 0.01,
			MinPrice:            1.0,
			MaxResults:          100,
			CacheTTL:            duration{5 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Scrapers: scrapers,
		Filters:  map[string]SearchFilter{},
	}
}

// validLogLevels enumerates the accepted values for Settings.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.Settings.LogLevel)] {
		errs = append(errs, fmt.Sprintf("settings: unknown log_level %q (valid: debug, info, warn, error)", c.Settings.LogLevel))
	}
	if c.Settings.MaxRetries < 0 {
		errs = append(errs, "settings: max_retries must be >= 0")
	}
	if c.Settings.MaxConcurrency < 1 {
		errs = append(errs, "settings: max_concurrency must be >= 1")
	}
	if c.Settings.MinConcurrency < 1 || c.Settings.MinConcurrency > c.Settings.MaxConcurrency {
		errs = append(errs, "settings: min_concurrency must be in [1, max_concurrency]")
	}
	if c.Settings.SteamMaxConcurrent < 1 || c.Settings.SteamMaxConcurrent > 5 {
		errs = append(errs, "settings: steam_max_concurrent must be in [1, 5]")
	}
	if c.Settings.MaxConnections < 1 {
		errs = append(errs, "settings: max_connections must be >= 1")
	}

	if c.Proxy.Enabled {
		if c.Proxy.Pools < 1 {
			errs = append(errs, "proxy: pools must be >= 1 when enabled")
		}
		if c.Proxy.ProxiesPerPool < 1 {
			errs = append(errs, "proxy: proxies_per_pool must be >= 1 when enabled")
		}
		if c.Proxy.AuthToken == "" || c.Proxy.OrderToken == "" {
			errs = append(errs, "proxy: OCULUS_AUTH_TOKEN and OCULUS_ORDER_TOKEN must be set when enabled")
		}
	}

	if c.Cache.MemoryLimitItems < 1 {
		errs = append(errs, "cache: memory_limit_items must be >= 1")
	}

	switch c.Profitability.Mode {
	case "fast", "complete":
	default:
		errs = append(errs, fmt.Sprintf("profitability: unknown mode %q (valid: fast, complete)", c.Profitability.Mode))
	}
	if c.Profitability.MinPrice < 0 {
		errs = append(errs, "profitability: min_price must be >= 0")
	}
	if c.Profitability.MaxResults < 1 {
		errs = append(errs, "profitability: max_results must be >= 1")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
	}

	for name := range c.Scrapers {
		if !domain.Venue(name).Valid() {
			errs = append(errs, fmt.Sprintf("scrapers: unknown venue %q", name))
		}
	}
	for name, f := range c.Filters {
		if f.MaxPrice > 0 && f.MaxPrice < f.MinPrice {
			errs = append(errs, fmt.Sprintf("filters.%s: max_price must be >= min_price", name))
		}
		for _, p := range f.Platforms {
			if !domain.Venue(p).Valid() {
				errs = append(errs, fmt.Sprintf("filters.%s: unknown platform %q", name, p))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// Scraper returns the configuration for a venue, falling back to defaults
// when the venue has no explicit section. A partial TOML section only
// overrides the fields it names: zero-valued tuning knobs are backfilled
// from the venue's defaults so a two-line override cannot cripple an
// adapter. Boolean flags (enabled, use_proxy, requires_api_key, anti_bot,
// dynamic) are taken as written.
func (c *Config) Scraper(venue domain.Venue) ScraperConfig {
	def := Defaults().Scrapers[string(venue)]
	sc, ok := c.Scrapers[string(venue)]
	if !ok {
		return def
	}
	if sc.Timeout.Duration == 0 {
		sc.Timeout = def.Timeout
	}
	if sc.MaxRetries == 0 {
		sc.MaxRetries = def.MaxRetries
	}
	if sc.RatePerMinute == 0 {
		sc.RatePerMinute = def.RatePerMinute
	}
	if sc.Burst == 0 {
		sc.Burst = def.Burst
	}
	if sc.Interval.Duration == 0 {
		sc.Interval = def.Interval
	}
	if sc.PageSize == 0 {
		sc.PageSize = def.PageSize
	}
	if sc.MaxPages == 0 {
		sc.MaxPages = def.MaxPages
	}
	if sc.BatchSize == 0 {
		sc.BatchSize = def.BatchSize
	}
	if sc.BonusRate == 0 {
		sc.BonusRate = def.BonusRate
	}
	if sc.ConversionRate == 0 {
		sc.ConversionRate = def.ConversionRate
	}
	return sc
}
