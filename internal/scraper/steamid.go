package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/storage"
)

// nameidPattern extracts the numeric item nameid embedded in a Steam
// listing page.
var nameidPattern = regexp.MustCompile(`Market_LoadOrderSpread\(\s*(\d+)\s*\)`)

// steamidAdapter harvests Steam item nameids for names that appear in the
// steam_listing catalog but are missing from the nameid index. Listing
// pages are fetched through the low-level client (the market HTML endpoint
// is WAF-fingerprinted) and the discovered ids are merged back into
// item_nameids.json. The adapter itself contributes no listings.
type steamidAdapter struct {
	deps Deps
	cfg  config.ScraperConfig

	mu    sync.Mutex
	found []storage.NameID
}

func newSteamID(deps Deps, cfg config.ScraperConfig) Adapter {
	return &steamidAdapter{deps: deps, cfg: cfg}
}

func (a *steamidAdapter) Venue() domain.Venue { return domain.VenueSteamID }

func (a *steamidAdapter) Plan(context.Context) (FetchPlan, error) {
	listings, err := a.deps.Store.ReadSnapshot(domain.VenueSteamListing)
	if err != nil {
		return FetchPlan{}, err
	}
	if len(listings) == 0 {
		return FetchPlan{}, fmt.Errorf("steamid: %w: steam_listing catalog (run steam_listing first)", domain.ErrNotFound)
	}

	known, err := a.deps.Store.ReadNameIDs()
	if err != nil {
		return FetchPlan{}, err
	}
	have := make(map[string]bool, len(known))
	for _, id := range known {
		if id.ID > 0 {
			have[id.Name] = true
		}
	}

	var missing []storage.NameID
	for _, l := range listings {
		if !have[l.Item] {
			missing = append(missing, storage.NameID{Name: l.Item})
		}
	}

	return FetchPlan{
		Kind:  PlanNameIDBatch,
		Items: missing,
		ItemURL: func(item storage.NameID) string {
			return "https://steamcommunity.com/market/listings/730/" + encodePath(item.Name)
		},
	}, nil
}

func (a *steamidAdapter) Parse([]byte) ([]domain.Listing, error) {
	return nil, &domain.ParseError{Venue: a.Venue(), Reason: "nameid batch adapter has no page parser"}
}

// ParseBatchItem scans a listing page for the embedded nameid. It never
// produces a listing; discoveries accumulate for Finalize.
func (a *steamidAdapter) ParseBatchItem(data []byte, item storage.NameID) (*domain.Listing, error) {
	m := nameidPattern.FindSubmatch(data)
	if m == nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "nameid not found in listing page"}
	}
	id, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "nameid not numeric"}
	}

	a.mu.Lock()
	a.found = append(a.found, storage.NameID{ID: id, Name: item.Name})
	a.mu.Unlock()
	return nil, nil
}

// Finalize merges the harvested ids into the persisted index.
func (a *steamidAdapter) Finalize(context.Context) error {
	a.mu.Lock()
	found := a.found
	a.found = nil
	a.mu.Unlock()
	if len(found) == 0 {
		return nil
	}

	known, err := a.deps.Store.ReadNameIDs()
	if err != nil {
		return err
	}
	byName := make(map[string]storage.NameID, len(known)+len(found))
	for _, id := range known {
		byName[id.Name] = id
	}
	for _, id := range found {
		byName[id.Name] = id
	}
	merged := make([]storage.NameID, 0, len(byName))
	for _, id := range byName {
		merged = append(merged, id)
	}
	return a.deps.Store.WriteNameIDs(merged)
}
