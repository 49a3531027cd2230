package scraper

import (
	"context"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// rapidskinsAdapter covers Rapidskins, whose catalog only renders inside a
// browser. The framework short-circuits dynamic venues with an empty
// snapshot and a documented reason instead of scraping HTML heuristics; a
// browser-automation implementation can plug into the same contract.
type rapidskinsAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newRapidskins(deps Deps, cfg config.ScraperConfig) Adapter {
	return &rapidskinsAdapter{deps: deps, cfg: cfg}
}

func (a *rapidskinsAdapter) Venue() domain.Venue { return domain.VenueRapidskins }

func (a *rapidskinsAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind:   PlanDynamic,
		Reason: "dynamic content: catalog requires browser rendering",
	}, nil
}

func (a *rapidskinsAdapter) Parse([]byte) ([]domain.Listing, error) {
	return nil, nil
}
