package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// tradeitAdapter scrapes the Tradeit.gg inventory data API. The wire price
// is the "for trade" integer, divided by 100 for USD; the raw value is kept
// in Extra.
type tradeitAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newTradeit(deps Deps, cfg config.ScraperConfig) Adapter {
	return &tradeitAdapter{deps: deps, cfg: cfg}
}

func (a *tradeitAdapter) Venue() domain.Venue { return domain.VenueTradeit }

func (a *tradeitAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://tradeit.gg/api/v2/inventory/data?gameId=730&sortType=Price+-+low&searchValue=&minPrice=0&maxPrice=100000&offset=0&limit=500&fresh=true",
	}, nil
}

type tradeitItem struct {
	Name          string `json:"name"`
	PriceForTrade int64  `json:"priceForTrade"`
	Amount        int    `json:"amount"`
}

func (a *tradeitAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Items []tradeitItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.PriceForTrade <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(float64(it.PriceForTrade)) / 100,
			Platform: domain.VenueTradeit,
			URL:      "https://tradeit.gg/csgo/trade?search=" + encodePath(name),
			Quantity: domain.IntPtr(it.Amount),
			Extra:    map[string]any{"price_for_trade": it.PriceForTrade},
		})
	}
	return listings, nil
}
