package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/httpx"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// State is the lifecycle of one adapter run.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateParsing    State = "parsing"
	StatePersisting State = "persisting"
	StateFailed     State = "failed"
)

// emptyPageRetries bounds how many consecutive empty or failed pages the
// pagination loop tolerates before treating the catalog as exhausted.
const emptyPageRetries = 2

// Runner drives one adapter through the shared scheduling loop. It owns
// header composition, rate limiting, pagination, the Steam semaphore,
// snapshot assembly, and persistence; the adapter only plans URLs and
// decodes payloads.
type Runner struct {
	adapter Adapter
	deps    Deps
	cfg     config.ScraperConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// NewRunner creates a Runner for one adapter with its venue configuration.
func NewRunner(adapter Adapter, cfg config.ScraperConfig, deps Deps) *Runner {
	perSecond := rate.Limit(float64(cfg.RatePerMinute) / 60.0)
	if cfg.RatePerMinute <= 0 {
		perSecond = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		adapter: adapter,
		deps:    deps,
		cfg:     cfg,
		limiter: rate.NewLimiter(perSecond, burst),
		logger:  deps.Logger.With(slog.String("component", "scraper"), slog.String("venue", string(adapter.Venue()))),
		state:   StateIdle,
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Result is the outcome of one adapter run.
type Result struct {
	Venue    domain.Venue
	Status   telemetry.AdapterStatus
	Items    int
	Elapsed  time.Duration
	Reason   string
	Snapshot *domain.VenueSnapshot
}

// Run executes one full adapter cycle. Cooperative cancellation persists
// whatever pages were already validated before exiting; the result is then
// reported as partial. A failed run preserves the previous on-disk snapshot.
func (r *Runner) Run(ctx context.Context) Result {
	started := time.Now()
	venue := r.adapter.Venue()
	res := Result{Venue: venue}

	finish := func() Result {
		res.Elapsed = time.Since(started)
		r.deps.Recorder.RecordAdapter(telemetry.AdapterResult{
			Venue:   venue,
			Status:  res.Status,
			Items:   res.Items,
			Elapsed: res.Elapsed,
			Reason:  res.Reason,
		})
		return res
	}

	headers, err := r.composeHeaders()
	if err != nil {
		// Missing credential: fail before any network traffic.
		r.setState(StateFailed)
		res.Status = telemetry.StatusFailed
		res.Reason = err.Error()
		r.logger.Error("adapter failed", slog.String("error", err.Error()))
		return finish()
	}

	if r.cfg.Dynamic {
		// Declared SPA-rendered in configuration: documented short-circuit
		// regardless of what the adapter would plan.
		r.setState(StateIdle)
		res.Status = telemetry.StatusSkipped
		res.Reason = "dynamic content: venue requires browser rendering"
		r.logger.Info("adapter skipped", slog.String("reason", res.Reason))
		return finish()
	}

	r.setState(StateFetching)
	plan, err := r.adapter.Plan(ctx)
	if err != nil {
		r.setState(StateFailed)
		res.Status = telemetry.StatusFailed
		res.Reason = err.Error()
		r.logger.Error("plan failed", slog.String("error", err.Error()))
		return finish()
	}
	for k, v := range plan.Headers {
		headers[k] = v
	}

	if plan.Kind == PlanDynamic {
		// SPA-rendered venue: documented short-circuit, previous snapshot
		// stays untouched.
		r.setState(StateIdle)
		res.Status = telemetry.StatusSkipped
		res.Reason = plan.Reason
		r.logger.Info("adapter skipped", slog.String("reason", plan.Reason))
		return finish()
	}

	listings, partial, fetchErr := r.fetch(ctx, plan, headers)

	if fetchErr != nil && len(listings) == 0 {
		r.setState(StateFailed)
		res.Status = telemetry.StatusFailed
		res.Reason = fetchErr.Error()
		r.logger.Error("adapter failed", slog.String("error", fetchErr.Error()))
		return finish()
	}
	if partial && len(listings) == 0 {
		// Nothing validated before cancellation; leave the previous
		// snapshot untouched.
		r.setState(StateIdle)
		res.Status = telemetry.StatusPartial
		res.Reason = "canceled before first page"
		return finish()
	}

	r.setState(StatePersisting)
	snap := domain.NewSnapshot(venue, time.Now().UTC(), listings)
	if err := r.persist(snap); err != nil {
		r.setState(StateFailed)
		res.Status = telemetry.StatusFailed
		res.Reason = err.Error()
		r.logger.Error("persist failed", slog.String("error", err.Error()))
		return finish()
	}
	r.deps.Recorder.RecordItems(venue, len(snap.Listings))

	if f, ok := r.adapter.(Finalizer); ok {
		if err := f.Finalize(ctx); err != nil {
			r.logger.Warn("finalize failed", slog.String("error", err.Error()))
		}
	}

	r.setState(StateIdle)
	res.Items = len(snap.Listings)
	res.Snapshot = &snap
	switch {
	case partial || fetchErr != nil:
		res.Status = telemetry.StatusPartial
		if fetchErr != nil {
			res.Reason = fetchErr.Error()
		} else {
			res.Reason = "canceled mid-run"
		}
	default:
		res.Status = telemetry.StatusOK
	}
	r.logger.Info("adapter run complete",
		slog.String("status", string(res.Status)),
		slog.Int("items", res.Items),
		slog.Duration("elapsed", time.Since(started)),
	)
	return finish()
}

// composeHeaders builds the venue's header set: configured overrides plus
// the bearer token resolved from the secrets registry. A venue declared
// requires_api_key with no credential in the environment fails here, before
// any network call.
func (r *Runner) composeHeaders() (map[string]string, error) {
	venue := r.adapter.Venue()
	headers := make(map[string]string, len(r.cfg.Headers)+1)
	for k, v := range r.cfg.Headers {
		headers[k] = v
	}

	if r.cfg.RequiresAPIKey {
		key, err := r.deps.Secrets.Require(venue)
		if err != nil {
			return nil, err
		}
		name, value := r.deps.Secrets.AuthHeader(venue, key)
		headers[name] = value
	} else if key := r.deps.Secrets.Key(venue); key != "" {
		name, value := r.deps.Secrets.AuthHeader(venue, key)
		headers[name] = value
	}
	return headers, nil
}

// fetch executes the plan. It returns the accumulated listings, whether the
// run was cut short by cancellation, and the first page-level error
// encountered (parse errors fail their page only).
func (r *Runner) fetch(ctx context.Context, plan FetchPlan, headers map[string]string) ([]domain.Listing, bool, error) {
	switch plan.Kind {
	case PlanSingle:
		return r.fetchSingle(ctx, plan, headers)
	case PlanPaginated:
		return r.fetchPaginated(ctx, plan, headers)
	case PlanNameIDBatch:
		return r.fetchNameIDBatch(ctx, plan, headers)
	default:
		return nil, false, fmt.Errorf("scraper: unsupported plan kind %d", plan.Kind)
	}
}

func (r *Runner) fetchSingle(ctx context.Context, plan FetchPlan, headers map[string]string) ([]domain.Listing, bool, error) {
	body, err := r.request(ctx, plan.URL, headers)
	if err != nil {
		return nil, errors.Is(err, context.Canceled), err
	}
	listings, err := r.parsePage(body)
	return listings, false, err
}

func (r *Runner) fetchPaginated(ctx context.Context, plan FetchPlan, headers map[string]string) ([]domain.Listing, bool, error) {
	maxPages := plan.MaxPages
	if maxPages <= 0 {
		maxPages = r.cfg.MaxPages
	}

	var all []domain.Listing
	var firstErr error
	empties := 0

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			// Cancellation: keep what was already validated.
			return all, true, nil
		}

		body, err := r.request(ctx, plan.PageURL(page), headers)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return all, true, nil
			}
			if firstErr == nil {
				firstErr = err
			}
			empties++
			if empties > emptyPageRetries {
				break
			}
			continue
		}

		listings, err := r.parsePage(body)
		if err != nil {
			// Parse failure is fatal for this page; other pages continue.
			r.logger.Warn("page parse failed",
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			empties++
			if empties > emptyPageRetries {
				break
			}
			continue
		}
		if len(listings) == 0 {
			empties++
			if empties > emptyPageRetries {
				break
			}
			continue
		}
		empties = 0
		all = append(all, listings...)
	}

	if len(all) > 0 {
		// Pages succeeded; a trailing error demotes the run to partial at
		// most.
		return all, false, firstErr
	}
	return all, false, firstErr
}

func (r *Runner) fetchNameIDBatch(ctx context.Context, plan FetchPlan, headers map[string]string) ([]domain.Listing, bool, error) {
	parser, ok := r.adapter.(BatchParser)
	if !ok {
		return nil, false, fmt.Errorf("scraper: %s plans nameid batches but implements no BatchParser", r.adapter.Venue())
	}

	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var all []domain.Listing
	var firstErr error

	for start := 0; start < len(plan.Items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return all, true, nil
		}
		end := min(start+batchSize, len(plan.Items))
		batch := plan.Items[start:end]

		for _, item := range batch {
			if err := ctx.Err(); err != nil {
				return all, true, nil
			}
			if err := r.deps.SteamSem.Acquire(ctx, 1); err != nil {
				return all, true, nil
			}
			body, err := r.request(ctx, plan.ItemURL(item), headers)
			r.deps.SteamSem.Release(1)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return all, true, nil
				}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			listing, err := parser.ParseBatchItem(body, item)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if listing == nil {
				continue
			}
			if err := validListing(*listing); err != nil {
				r.logger.Debug("item dropped", slog.String("error", err.Error()))
				continue
			}
			all = append(all, *listing)
		}
	}
	return all, false, firstErr
}

// request performs one rate-limited engine call for this venue.
func (r *Runner) request(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, context.Canceled
	}
	resp, err := r.deps.Engine.Do(ctx, httpx.Request{
		URL:      url,
		Headers:  headers,
		Timeout:  r.cfg.Timeout.Duration,
		UseProxy: r.cfg.UseProxy,
		LowLevel: r.cfg.AntiBot,
		Venue:    r.adapter.Venue(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// parsePage decodes one payload and drops invalid items.
func (r *Runner) parsePage(body []byte) ([]domain.Listing, error) {
	listings, err := r.adapter.Parse(body)
	if err != nil {
		return nil, err
	}
	valid := listings[:0]
	for _, l := range listings {
		if err := validListing(l); err != nil {
			r.logger.Debug("item dropped", slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, l)
	}
	return valid, nil
}

// persist writes the snapshot. Steam-origin catalogs are merged
// incrementally because full rewrites are expensive at their size; other
// venues replace their snapshot wholesale.
func (r *Runner) persist(snap domain.VenueSnapshot) error {
	if snap.Venue.SteamOrigin() {
		stats, err := r.deps.Store.MergeSnapshot(snap)
		if err != nil {
			return err
		}
		r.logger.Info("incremental merge complete",
			slog.Int("existing", stats.Existing),
			slog.Int("added", stats.Added),
			slog.Int("updated", stats.Updated),
			slog.Int("duplicates", stats.Duplicates),
			slog.Int("total", stats.Total),
		)
		return nil
	}
	return r.deps.Store.WriteSnapshot(snap)
}
