package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// bitskinsAdapter scrapes the BitSkins insell feed. Prices arrive in
// thousandths of a dollar; the raw value is preserved in Extra.
type bitskinsAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newBitskins(deps Deps, cfg config.ScraperConfig) Adapter {
	return &bitskinsAdapter{deps: deps, cfg: cfg}
}

func (a *bitskinsAdapter) Venue() domain.Venue { return domain.VenueBitskins }

func (a *bitskinsAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://api.bitskins.com/market/insell/730",
	}, nil
}

type bitskinsItem struct {
	Name     string `json:"name"`
	PriceMin int64  `json:"price_min"`
	Quantity int    `json:"quantity"`
}

func (a *bitskinsAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		List []bitskinsItem `json:"list"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.List))
	for _, it := range payload.List {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.PriceMin <= 0 {
			continue
		}
		price := math.Round(float64(it.PriceMin)/1000.0*100) / 100
		if price < 0.01 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    price,
			Platform: domain.VenueBitskins,
			URL:      "https://bitskins.com/market/730/search?market_hash_name=" + encodePath(name),
			Quantity: domain.IntPtr(it.Quantity),
			Extra:    map[string]any{"original_price_millis": it.PriceMin},
		})
	}
	return listings, nil
}
