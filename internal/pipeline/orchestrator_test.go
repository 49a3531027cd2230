package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/mfigueredo/skinarb/internal/cache"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/httpx"
	"github.com/mfigueredo/skinarb/internal/paths"
	"github.com/mfigueredo/skinarb/internal/scraper"
	"github.com/mfigueredo/skinarb/internal/storage"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

func testOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg, err := paths.New(t.TempDir(), logger)
	require.NoError(t, err)
	_, secrets, err := config.Load(t.TempDir())
	require.NoError(t, err)

	recorder := telemetry.NewRecorder(nil)
	deps := scraper.Deps{
		Engine: httpx.NewEngine(httpx.EngineConfig{
			MaxRetries:  0,
			BackoffBase: time.Millisecond,
			Timeout:     time.Second,
			Recorder:    recorder,
			Logger:      logger,
		}),
		Secrets:  secrets,
		Store:    storage.New(reg, logger),
		Images:   cache.NewImages(reg.ImageCache, logger),
		Recorder: recorder,
		SteamSem: semaphore.NewWeighted(5),
		Logger:   logger,
	}
	return NewOrchestrator(cfg, deps, logger)
}

func TestOptimalConcurrencyBounds(t *testing.T) {
	cfg := config.Defaults()
	cfg.Settings.MaxConcurrency = 8
	cfg.Settings.MinConcurrency = 2
	cfg.Settings.MemoryFactor = 100 // absurd factor still clamps
	o := testOrchestrator(t, &cfg)
	assert.Equal(t, 8, o.OptimalConcurrency())

	cfg.Settings.MemoryFactor = 0.0001
	assert.Equal(t, 2, o.OptimalConcurrency())
}

func TestRunUnknownSelection(t *testing.T) {
	cfg := config.Defaults()
	o := testOrchestrator(t, &cfg)

	_, err := o.Run(context.Background(), []string{"nosuchvenue"}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestRunMissingAPIKeyRecordedAsFailure(t *testing.T) {
	t.Setenv("SHADOWPAY_API_KEY", "")

	cfg := config.Defaults()
	// Only the credential-gated venue is selected, and it must fail
	// before any network traffic.
	o := testOrchestrator(t, &cfg)

	summary, err := o.Run(context.Background(), []string{"shadowpay"}, 1)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	res := summary.Results[0]
	assert.Equal(t, telemetry.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "SHADOWPAY_API_KEY")
	assert.True(t, summary.PartialFailure(), "a failed adapter maps to exit code 3")

	rep := o.deps.Recorder.Report()
	assert.Zero(t, rep.Requests, "zero network calls for the gated venue")
}

func TestRunDisabledVenueSkipped(t *testing.T) {
	cfg := config.Defaults()
	sc := cfg.Scrapers["white"]
	sc.Enabled = false
	cfg.Scrapers["white"] = sc

	o := testOrchestrator(t, &cfg)
	summary, err := o.Run(context.Background(), []string{"white"}, 1)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, telemetry.StatusSkipped, summary.Results[0].Status)
	assert.False(t, summary.PartialFailure())
}

func TestRunDynamicVenueSkipped(t *testing.T) {
	cfg := config.Defaults()
	o := testOrchestrator(t, &cfg)

	summary, err := o.Run(context.Background(), []string{"rapidskins"}, 1)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, telemetry.StatusSkipped, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Reason, "dynamic content")
}

func TestResolvePresets(t *testing.T) {
	cfg := config.Defaults()
	o := testOrchestrator(t, &cfg)

	all, err := o.Venues(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(domain.AllVenues))

	steam, err := o.Venues([]string{"steam"})
	require.NoError(t, err)
	assert.Contains(t, steam, domain.VenueSteamListing)
	assert.Contains(t, steam, domain.VenueSteamMarket)
	assert.NotContains(t, steam, domain.VenueWaxpeer)

	explicit, err := o.Venues([]string{"waxpeer", "skinport", "waxpeer"})
	require.NoError(t, err)
	assert.Len(t, explicit, 2, "explicit selections deduplicate")
}
