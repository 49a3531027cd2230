package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/skinarb/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	// Every venue in the closed set has a scraper entry.
	for _, v := range domain.AllVenues {
		_, ok := cfg.Scrapers[string(v)]
		assert.True(t, ok, "missing defaults for %s", v)
	}
}

func TestLoadMissingDirUsesDefaults(t *testing.T) {
	cfg, secrets, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.NotNil(t, secrets)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(`
[settings]
log_level = "debug"
timeout = "45s"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scrapers.toml"), []byte(`
[scrapers.waxpeer]
enabled = false
rate_per_minute = 10
burst = 2
timeout = "15s"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search_filters.toml"), []byte(`
[filters.test]
min_profit_percentage = 0.07
min_price = 2.5
platforms = ["waxpeer"]
`), 0o644))

	cfg, _, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.Settings.Timeout.Duration)

	wax := cfg.Scraper(domain.VenueWaxpeer)
	assert.False(t, wax.Enabled)
	assert.Equal(t, 10, wax.RatePerMinute)
	assert.Equal(t, 100, wax.PageSize, "unset knobs backfill from defaults")

	// Venues not overridden keep their defaults.
	assert.True(t, cfg.Scraper(domain.VenueSkinport).Enabled)

	f, ok := cfg.Filters["test"]
	require.True(t, ok)
	assert.InDelta(t, 0.07, f.MinProfitPercentage, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_LOG_LEVEL", "warn")
	t.Setenv("BOT_USE_PROXY", "true")
	t.Setenv("BOT_CACHE_ENABLED", "false")

	cfg, _, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Settings.LogLevel)
	assert.True(t, cfg.Settings.UseProxy)
	assert.True(t, cfg.Proxy.Enabled)
	assert.False(t, cfg.Settings.CacheEnabled)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Settings.LogLevel = "loud"
	cfg.Settings.MaxConcurrency = 0
	cfg.Profitability.Mode = "sideways"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "max_concurrency")
	assert.Contains(t, err.Error(), "mode")
}

func TestValidateProxyNeedsTokens(t *testing.T) {
	cfg := Defaults()
	cfg.Proxy.Enabled = true
	cfg.Proxy.AuthToken = ""
	cfg.Proxy.OrderToken = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCULUS_AUTH_TOKEN")
}

func TestSecretsFromEnv(t *testing.T) {
	t.Setenv("WAXPEER_API_KEY", "wax-secret")
	t.Setenv("SHADOWPAY_API_KEY", "")

	_, secrets, err := Load(t.TempDir())
	require.NoError(t, err)

	key, err := secrets.Require(domain.VenueWaxpeer)
	require.NoError(t, err)
	assert.Equal(t, "wax-secret", key)

	name, value := secrets.AuthHeader(domain.VenueWaxpeer, key)
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer wax-secret", value)

	_, err = secrets.Require(domain.VenueShadowpay)
	var missing *domain.MissingAPIKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.VenueShadowpay, missing.Venue)
	assert.Equal(t, "SHADOWPAY_API_KEY", missing.EnvVar)
}

func TestSecretsNeverPrinted(t *testing.T) {
	t.Setenv("WAXPEER_API_KEY", "wax-secret")
	t.Setenv("OCULUS_AUTH_TOKEN", "oculus-secret")

	cfg, secrets, err := Load(t.TempDir())
	require.NoError(t, err)

	for _, v := range secrets.Redacted() {
		assert.Equal(t, "***", v)
	}

	red := RedactedConfig(cfg)
	assert.Equal(t, "***", red.Proxy.AuthToken)
	assert.NotContains(t, red.Proxy.AuthToken, "oculus-secret")
	// The original is untouched.
	assert.Equal(t, "oculus-secret", cfg.Proxy.AuthToken)
}

func TestAPIKeysFileCarriesMetadataOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api_keys.toml"), []byte(`
[keys.empire]
env_var = "EMPIRE_TOKEN_OVERRIDE"
required = true
type = "api_key"
header_name = "X-Api-Key"
`), 0o644))
	t.Setenv("EMPIRE_TOKEN_OVERRIDE", "abc")

	_, secrets, err := Load(dir)
	require.NoError(t, err)

	key, err := secrets.Require(domain.VenueEmpire)
	require.NoError(t, err)
	name, value := secrets.AuthHeader(domain.VenueEmpire, key)
	assert.Equal(t, "X-Api-Key", name)
	assert.Equal(t, "abc", value)
}
