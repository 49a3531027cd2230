package scraper

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// lisskinsAdapter scrapes the LIS-Skins full catalog export. One very large
// JSON document; the venue config uses a long timeout and a one-request
// bucket.
type lisskinsAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newLisskins(deps Deps, cfg config.ScraperConfig) Adapter {
	return &lisskinsAdapter{deps: deps, cfg: cfg}
}

func (a *lisskinsAdapter) Venue() domain.Venue { return domain.VenueLisskins }

func (a *lisskinsAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://lis-skins.com/market_export_json/api_csgo_full.json",
	}, nil
}

type lisskinsItem struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Count int         `json:"count"`
}

func (a *lisskinsAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var items []lisskinsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		price, err := it.Price.Float64()
		if err != nil || price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueLisskins,
			URL:      "https://lis-skins.com/market_730.html?search_item=" + encodePath(name),
			Quantity: domain.IntPtr(it.Count),
		})
	}
	return listings, nil
}
