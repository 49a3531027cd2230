package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// skinoutAdapter scrapes the Skinout market items API. Feeds have shipped
// the price under several field names over time; the first populated one
// wins.
type skinoutAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newSkinout(deps Deps, cfg config.ScraperConfig) Adapter {
	return &skinoutAdapter{deps: deps, cfg: cfg}
}

func (a *skinoutAdapter) Venue() domain.Venue { return domain.VenueSkinout }

func (a *skinoutAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf("https://skinout.gg/api/market/items?page=%d", page+1)
		},
		MaxPages: a.cfg.MaxPages,
	}, nil
}

type skinoutItem struct {
	MarketHashName string      `json:"market_hash_name"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	CurrentPrice   json.Number `json:"current_price"`
	SellPrice      json.Number `json:"sell_price"`
}

func (a *skinoutAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Items []skinoutItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.MarketHashName)
		if name == "" {
			name = strings.TrimSpace(it.Name)
		}
		if name == "" {
			continue
		}
		price := firstPrice(it.Price, it.CurrentPrice, it.SellPrice)
		if price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueSkinout,
			URL:      "https://skinout.gg/market/cs2?item=" + encodePath(name),
		})
	}
	return listings, nil
}

func firstPrice(candidates ...json.Number) float64 {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if v, err := c.Float64(); err == nil && v > 0 {
			return v
		}
	}
	return 0
}
