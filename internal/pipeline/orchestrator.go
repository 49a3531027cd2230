// Package pipeline schedules venue adapters concurrently under a global
// concurrency cap derived from system resources, with per-adapter timeouts
// and cooperative cancellation.
package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/scraper"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// startStagger spaces adapter starts so a burst of first requests hits
// distinct hosts rather than racing out in one instant.
const startStagger = 150 * time.Millisecond

// Orchestrator runs many adapters in parallel.
type Orchestrator struct {
	cfg    *config.Config
	deps   scraper.Deps
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the shared adapter deps.
func NewOrchestrator(cfg *config.Config, deps scraper.Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "orchestrator")),
	}
}

// OptimalConcurrency computes the in-flight adapter cap from CPU count, the
// configured memory factor and environment factor, clamped to the
// configured hard bounds.
func (o *Orchestrator) OptimalConcurrency() int {
	s := o.cfg.Settings
	n := int(float64(runtime.NumCPU()) * s.MemoryFactor * s.EnvironmentFactor)
	if n > s.MaxConcurrency {
		n = s.MaxConcurrency
	}
	if n < s.MinConcurrency {
		n = s.MinConcurrency
	}
	return n
}

// Summary reports one orchestrator run.
type Summary struct {
	Started     time.Time          `json:"started"`
	Elapsed     time.Duration      `json:"elapsed"`
	Concurrency int                `json:"concurrency"`
	Results     []scraper.Result   `json:"results"`
	Requested   int                `json:"requested"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Partial     int                `json:"partial"`
	Skipped     int                `json:"skipped"`
}

// PartialFailure reports whether at least one adapter failed, timed out or
// finished partially; it is also true when every adapter failed.
func (s *Summary) PartialFailure() bool {
	return s.Failed > 0 || s.Partial > 0
}

// Run executes the selected adapters once. selection is "all", a preset
// name, or explicit venue identifiers; concurrency <= 0 uses the computed
// optimal. Adapter failures never abort siblings; per-adapter timeouts are
// recorded as such.
func (o *Orchestrator) Run(ctx context.Context, selection []string, concurrency int) (*Summary, error) {
	venues, err := scraper.Resolve(selection)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = o.OptimalConcurrency()
	}

	summary := &Summary{
		Started:     time.Now(),
		Concurrency: concurrency,
	}
	results := make([]scraper.Result, 0, len(venues))

	o.logger.Info("orchestrator starting",
		slog.Int("venues", len(venues)),
		slog.Int("concurrency", concurrency),
	)

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	resCh := make(chan scraper.Result, len(venues))

	for i, venue := range venues {
		sc := o.cfg.Scraper(venue)
		if !sc.Enabled {
			resCh <- scraper.Result{
				Venue:  venue,
				Status: telemetry.StatusSkipped,
				Reason: "disabled by configuration",
			}
			continue
		}

		adapter, err := scraper.New(venue, o.deps, sc)
		if err != nil {
			resCh <- scraper.Result{
				Venue:  venue,
				Status: telemetry.StatusFailed,
				Reason: err.Error(),
			}
			continue
		}
		runner := scraper.NewRunner(adapter, sc, o.deps)

		stagger := time.Duration(i) * startStagger
		g.Go(func() error {
			if stagger > 0 {
				timer := time.NewTimer(stagger)
				select {
				case <-runCtx.Done():
					timer.Stop()
					resCh <- scraper.Result{
						Venue:  venue,
						Status: telemetry.StatusSkipped,
						Reason: "canceled before start",
					}
					return nil
				case <-timer.C:
				}
			}

			adapterCtx := runCtx
			var cancel context.CancelFunc
			if budget := o.cfg.Settings.AdapterTimeout.Duration; budget > 0 {
				adapterCtx, cancel = context.WithTimeout(runCtx, budget)
				defer cancel()
			}

			res := runner.Run(adapterCtx)
			if adapterCtx.Err() == context.DeadlineExceeded && runCtx.Err() == nil {
				res.Status = telemetry.StatusTimeout
				if res.Reason == "" {
					res.Reason = "adapter exceeded wall-clock budget"
				}
			}
			resCh <- res
			return nil
		})
	}

	_ = g.Wait()
	close(resCh)
	for res := range resCh {
		results = append(results, res)
	}

	summary.Results = results
	summary.Requested = len(venues)
	summary.Elapsed = time.Since(summary.Started)
	for _, res := range results {
		switch res.Status {
		case telemetry.StatusOK:
			summary.Succeeded++
		case telemetry.StatusPartial:
			summary.Partial++
		case telemetry.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	o.logger.Info("orchestrator run complete",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("partial", summary.Partial),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("elapsed", summary.Elapsed),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// RunLoop runs the selection on a repeating interval until the context is
// cancelled. The first run starts immediately.
func (o *Orchestrator) RunLoop(ctx context.Context, selection []string, interval time.Duration) error {
	if _, err := o.Run(ctx, selection, 0); err != nil && ctx.Err() == nil {
		o.logger.Error("scrape run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.Run(ctx, selection, 0); err != nil && ctx.Err() == nil {
				o.logger.Error("scrape run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Venues exposes the resolved selection for callers that need to inspect it
// (e.g. the CLI listing enabled venues).
func (o *Orchestrator) Venues(selection []string) ([]domain.Venue, error) {
	return scraper.Resolve(selection)
}
