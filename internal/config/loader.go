package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML configuration files from configDir, merges them on top
// of the built-in defaults, applies environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// Files read (each optional): settings.toml, scrapers.toml, api_keys.toml,
// search_filters.toml. api_keys.toml carries only credential metadata; the
// secret values themselves come from environment variables.
func Load(configDir string) (*Config, *Secrets, error) {
	cfg := Defaults()

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	if err := decodeOptional(filepath.Join(configDir, "settings.toml"), &cfg); err != nil {
		return nil, nil, err
	}

	var scrapersFile struct {
		Scrapers map[string]ScraperConfig `toml:"scrapers"`
	}
	if err := decodeOptional(filepath.Join(configDir, "scrapers.toml"), &scrapersFile); err != nil {
		return nil, nil, err
	}
	for name, sc := range scrapersFile.Scrapers {
		cfg.Scrapers[name] = sc
	}

	var filtersFile struct {
		Filters map[string]SearchFilter `toml:"filters"`
	}
	if err := decodeOptional(filepath.Join(configDir, "search_filters.toml"), &filtersFile); err != nil {
		return nil, nil, err
	}
	for name, f := range filtersFile.Filters {
		cfg.Filters[name] = f
	}

	secrets, err := loadSecrets(filepath.Join(configDir, "api_keys.toml"))
	if err != nil {
		return nil, nil, err
	}

	applyEnvOverrides(&cfg)

	// Proxy vendor tokens come exclusively from the environment.
	cfg.Proxy.AuthToken = os.Getenv("OCULUS_AUTH_TOKEN")
	cfg.Proxy.OrderToken = os.Getenv("OCULUS_ORDER_TOKEN")

	return &cfg, secrets, nil
}

// decodeOptional decodes a TOML file into dst, treating a missing file as a
// no-op so partial config directories work.
func decodeOptional(path string, dst any) error {
	if _, err := toml.DecodeFile(path, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads the well-known BOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators flip global toggles at deploy time without touching TOML.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Settings.LogLevel, "BOT_LOG_LEVEL")
	setBool(&cfg.Settings.UseProxy, "BOT_USE_PROXY")
	setBool(&cfg.Proxy.Enabled, "BOT_USE_PROXY")
	setBool(&cfg.Settings.CacheEnabled, "BOT_CACHE_ENABLED")
	setInt(&cfg.Settings.MaxConcurrency, "BOT_MAX_CONCURRENCY")

	setStr(&cfg.Archive.AccessKey, "BOT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "BOT_ARCHIVE_SECRET_KEY")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
