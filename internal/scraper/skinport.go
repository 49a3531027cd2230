package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// skinportAdapter scrapes the Skinport public items feed. One request
// returns the full USD catalog.
type skinportAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newSkinport(deps Deps, cfg config.ScraperConfig) Adapter {
	return &skinportAdapter{deps: deps, cfg: cfg}
}

func (a *skinportAdapter) Venue() domain.Venue { return domain.VenueSkinport }

func (a *skinportAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://api.skinport.com/v1/items?app_id=730&currency=USD",
	}, nil
}

type skinportItem struct {
	MarketHashName string   `json:"market_hash_name"`
	MinPrice       *float64 `json:"min_price"`
	Quantity       int      `json:"quantity"`
	ItemPage       string   `json:"item_page"`
}

func (a *skinportAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var items []skinportItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.MarketHashName)
		if name == "" || it.MinPrice == nil || *it.MinPrice <= 0 {
			continue
		}
		url := it.ItemPage
		if url == "" {
			url = "https://skinport.com/market/730?search=" + encodePath(name)
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(*it.MinPrice*100) / 100,
			Platform: domain.VenueSkinport,
			URL:      url,
			Quantity: domain.IntPtr(it.Quantity),
		})
	}
	return listings, nil
}
