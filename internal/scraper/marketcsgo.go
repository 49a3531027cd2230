package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// marketcsgoAdapter scrapes the Market.CSGO USD price feed.
type marketcsgoAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newMarketCSGO(deps Deps, cfg config.ScraperConfig) Adapter {
	return &marketcsgoAdapter{deps: deps, cfg: cfg}
}

func (a *marketcsgoAdapter) Venue() domain.Venue { return domain.VenueMarketCSGO }

func (a *marketcsgoAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://market.csgo.com/api/v2/prices/USD.json",
	}, nil
}

type marketcsgoItem struct {
	MarketHashName string          `json:"market_hash_name"`
	Price          json.Number     `json:"price"`
	Volume         json.RawMessage `json:"volume"`
}

func (a *marketcsgoAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Success bool             `json:"success"`
		Items   []marketcsgoItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}
	if !payload.Success {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "api reported failure"}
	}

	listings := make([]domain.Listing, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.MarketHashName)
		if name == "" {
			continue
		}
		price, err := strconv.ParseFloat(it.Price.String(), 64)
		if err != nil || price <= 0 {
			continue
		}
		// Volume is a listings count, not stock; keep it raw in Extra.
		var extra map[string]any
		if q := atoiSafe(it.Volume); q != nil {
			extra = map[string]any{"quantity_raw": *q}
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueMarketCSGO,
			URL:      "https://market.csgo.com/?search=" + encodePath(name),
			Extra:    extra,
		})
	}
	return listings, nil
}
