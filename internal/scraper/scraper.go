// Package scraper implements the venue adapter framework: an abstract
// fetch → parse → validate → normalize → persist contract per venue, with a
// shared base runner that owns scheduling, rate limiting, telemetry, and
// persistence. Adapters contribute venue-specific URL construction and
// response decoding only.
package scraper

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"

	"github.com/mfigueredo/skinarb/internal/cache"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/httpx"
	"github.com/mfigueredo/skinarb/internal/storage"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// PlanKind selects the fetch strategy for one adapter run.
type PlanKind int

const (
	// PlanSingle fetches one URL.
	PlanSingle PlanKind = iota
	// PlanPaginated loops over pages until an empty page (after bounded
	// retries) or MaxPages.
	PlanPaginated
	// PlanNameIDBatch fans out one request per Steam nameid under the
	// shared Steam semaphore.
	PlanNameIDBatch
	// PlanDynamic marks an SPA-rendered venue that needs browser
	// rendering; the framework short-circuits with an empty snapshot.
	PlanDynamic
)

// FetchPlan describes what the base runner should fetch for an adapter.
type FetchPlan struct {
	Kind PlanKind

	// URL is the single fetch target for PlanSingle.
	URL string

	// PageURL builds the fetch target for a zero-based page index
	// (PlanPaginated).
	PageURL func(page int) string
	// MaxPages bounds the pagination loop.
	MaxPages int

	// Items are the nameids to query (PlanNameIDBatch).
	Items []storage.NameID
	// ItemURL builds the fetch target for one nameid.
	ItemURL func(item storage.NameID) string

	// Headers are merged over the adapter's composed headers for every
	// request of this plan.
	Headers map[string]string

	// Reason documents why a PlanDynamic venue returns no data.
	Reason string
}

// Adapter is the contract every venue implements.
type Adapter interface {
	// Venue is the adapter's identifier from the closed set.
	Venue() domain.Venue
	// Plan describes what to fetch. Adapters may probe their venue (e.g.
	// a count query) through the shared engine while planning.
	Plan(ctx context.Context) (FetchPlan, error)
	// Parse decodes one response body into normalized listings.
	Parse(data []byte) ([]domain.Listing, error)
}

// BatchParser is implemented by PlanNameIDBatch adapters, whose responses
// only make sense alongside the nameid that produced them.
type BatchParser interface {
	ParseBatchItem(data []byte, item storage.NameID) (*domain.Listing, error)
}

// Finalizer is implemented by adapters that need a post-run step (e.g. the
// nameid harvester merging newly discovered ids into the index).
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Deps bundles everything an adapter and its runner need.
type Deps struct {
	Engine   *httpx.Engine
	Secrets  *config.Secrets
	Store    *storage.Store
	Images   *cache.Images
	Recorder *telemetry.Recorder
	// SteamSem is the process-wide semaphore bounding concurrent Steam
	// requests; Steam aggressively rate-limits.
	SteamSem *semaphore.Weighted
	Logger   *slog.Logger
}

// validate is the shared struct validator for normalized listings.
var validate = validator.New()

// validListing enforces the invariants every persisted listing must hold:
// non-empty name, non-negative price, non-negative-or-null quantity, venue from
// the closed set.
func validListing(l domain.Listing) error {
	if !l.Platform.Valid() {
		return &domain.ValidationError{Field: "Platform", Reason: "unknown venue " + string(l.Platform)}
	}
	if err := validate.Struct(l); err != nil {
		return &domain.ValidationError{Field: "Listing", Reason: err.Error()}
	}
	return nil
}
