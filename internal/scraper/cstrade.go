package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// cstradeAdapter scrapes the CS.Trade price feed. Displayed prices include
// the site's buyer-side trade bonus (50% by default); the adapter strips it
// so the effective USD price is comparable across venues. Both the listed
// and the effective price are exposed in Extra.
type cstradeAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newCSTrade(deps Deps, cfg config.ScraperConfig) Adapter {
	return &cstradeAdapter{deps: deps, cfg: cfg}
}

func (a *cstradeAdapter) Venue() domain.Venue { return domain.VenueCSTrade }

func (a *cstradeAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://cdn.cs.trade:2096/api/prices_CSGO",
		Headers: map[string]string{
			"Referer": "https://cs.trade/",
			"Origin":  "https://cs.trade",
		},
	}, nil
}

func (a *cstradeAdapter) bonusRate() float64 {
	if a.cfg.BonusRate > 0 {
		return a.cfg.BonusRate
	}
	return 0.50
}

type cstradeItem struct {
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Tradable int     `json:"tradable"`
}

func (a *cstradeAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var items map[string]cstradeItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	bonus := a.bonusRate()
	listings := make([]domain.Listing, 0, len(items))
	for name, it := range items {
		name = strings.TrimSpace(name)
		if name == "" || it.Price <= 0 {
			continue
		}
		real := math.Round(it.Price/(1+bonus)*100) / 100
		if real <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    real,
			Platform: domain.VenueCSTrade,
			URL:      "https://cs.trade/csgo-skins?search=" + encodePath(name),
			Quantity: domain.IntPtr(it.Stock),
			Extra: map[string]any{
				"original_price": it.Price,
				"bonus_rate":     bonus,
				"tradable":       it.Tradable > 0,
			},
		})
	}
	return listings, nil
}
