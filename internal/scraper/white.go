package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// whiteAdapter scrapes the White.market price export, which carries direct
// product deep links.
type whiteAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newWhite(deps Deps, cfg config.ScraperConfig) Adapter {
	return &whiteAdapter{deps: deps, cfg: cfg}
}

func (a *whiteAdapter) Venue() domain.Venue { return domain.VenueWhite }

func (a *whiteAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://api.white.market/export/v1/prices/730.json",
	}, nil
}

type whiteItem struct {
	MarketHashName    string      `json:"market_hash_name"`
	Price             json.Number `json:"price"`
	MarketProductLink string      `json:"market_product_link"`
}

func (a *whiteAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var items []whiteItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.MarketHashName)
		if name == "" {
			continue
		}
		price, err := it.Price.Float64()
		if err != nil || price <= 0 {
			continue
		}
		url := it.MarketProductLink
		if url == "" {
			url = "https://white.market/search?game[]=CS2&query=" + encodePath(name)
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueWhite,
			URL:      url,
		})
	}
	return listings, nil
}
