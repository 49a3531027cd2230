package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/pipeline"
	"github.com/mfigueredo/skinarb/internal/profit"
)

// Exit codes of the CLI surface.
const (
	ExitOK             = 0
	ExitConfigError    = 2
	ExitPartialFailure = 3
	ExitFatal          = 4
)

// App is the root application object. It owns the configuration, secrets,
// logger, and the cleanup chain registered during wiring.
type App struct {
	cfg     *config.Config
	secrets *config.Secrets
	logger  *slog.Logger
	deps    *Dependencies
	cleanup func()
}

// New wires an App from validated configuration.
func New(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *slog.Logger) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg, secrets, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &App{
		cfg:     cfg,
		secrets: secrets,
		logger:  logger.With(slog.String("component", "app")),
		deps:    deps,
		cleanup: cleanup,
	}, nil
}

// Close tears down all resources in reverse registration order.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

// RunScrape executes one scrape pass over the selection and prints the
// summary. The exit code distinguishes clean, partial, and fatal outcomes.
func (a *App) RunScrape(ctx context.Context, selection []string, concurrency int) int {
	summary, err := a.deps.Orchestrator.Run(ctx, selection, concurrency)
	if summary != nil {
		a.printSummary(summary)
		a.reportSession()
	}
	if err != nil && ctx.Err() == nil {
		a.logger.Error("scrape run failed", slog.String("error", err.Error()))
		return ExitFatal
	}
	if summary != nil && summary.PartialFailure() {
		return ExitPartialFailure
	}
	return ExitOK
}

// RunScrapeLoop runs the selection on the configured interval until
// canceled. Between runs the proxy subsystem re-checks the egress IP and
// rotates pools that have gone persistently bad.
func (a *App) RunScrapeLoop(ctx context.Context, selection []string) int {
	interval := a.cfg.Settings.ScrapeInterval.Duration
	if a.cfg.Proxy.Enabled {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.deps.Proxies.RefreshAllowListIfNeeded(ctx)
					a.deps.Proxies.RefreshPools(ctx, a.cfg.Proxy.ProxiesPerPool, a.cfg.Proxy.Regions)
				}
			}
		}()
	}

	err := a.deps.Orchestrator.RunLoop(ctx, selection, interval)
	a.reportSession()
	if err != nil && err != context.Canceled {
		return ExitFatal
	}
	return ExitOK
}

// RunProfitability computes and persists arbitrage opportunities, printing
// the ranked list.
func (a *App) RunProfitability(ctx context.Context, params profit.Params) int {
	archive, err := a.deps.Profit.Run(ctx, params)
	if err != nil {
		a.logger.Error("profitability run failed", slog.String("error", err.Error()))
		return ExitFatal
	}

	entry := archive.Current
	fmt.Printf("%d opportunities (mode: %s)\n", entry.TotalOpportunities, entry.Mode)
	for i, opp := range entry.Opportunities {
		fmt.Printf("%3d. %-50s buy $%.2f on %-12s net steam $%.2f  profit $%.2f (%.1f%%)\n",
			i+1, opp.Item, opp.BuyPrice, opp.BuyVenue, opp.NetSteamPrice,
			opp.ProfitAbsolute, opp.ProfitPercentage*100)
	}

	if a.deps.Archiver != nil {
		if err := a.deps.Archiver.ArchiveProfitability(ctx); err != nil {
			a.logger.Warn("cold-storage upload failed", slog.String("error", err.Error()))
		}
	}
	return ExitOK
}

// Filter resolves a named search filter preset.
func (a *App) Filter(name string) (*config.SearchFilter, error) {
	if name == "" {
		return nil, nil
	}
	f, ok := a.cfg.Filters[name]
	if !ok {
		return nil, fmt.Errorf("unknown search filter %q", name)
	}
	return &f, nil
}

// ProfitDefaults exposes the engine's configured parameters to the CLI.
func (a *App) ProfitDefaults() profit.Params {
	return a.deps.Profit.DefaultParams()
}

// printSummary writes the per-adapter table of a run to stdout.
func (a *App) printSummary(s *pipeline.Summary) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(data))
}

// reportSession logs the final telemetry report, including proxy pool
// scores when pools were in play.
func (a *App) reportSession() {
	rep := a.deps.Recorder.Report()
	a.logger.Info("session report",
		slog.String("session_id", rep.SessionID),
		slog.Int64("requests", rep.Requests),
		slog.Int64("failures", rep.Failures),
		slog.Int64("items", rep.Items),
		slog.Duration("elapsed", rep.Elapsed),
	)
	stats := a.deps.Proxies.Stats()
	if stats.TotalProxies > 0 {
		for _, pool := range stats.Pools {
			a.logger.Info("proxy pool report",
				slog.String("pool", pool.Name),
				slog.String("region", pool.Region),
				slog.Float64("score", pool.Score),
				slog.Int64("success", pool.Success),
				slog.Int64("failures", pool.Failures),
			)
		}
	}
	if a.deps.Archiver != nil {
		if _, err := a.deps.Archiver.ArchiveSnapshots(context.Background()); err != nil {
			a.logger.Warn("snapshot archive sweep failed", slog.String("error", err.Error()))
		}
	}
	_ = os.Stdout.Sync()
}
