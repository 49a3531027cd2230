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

// skindeckAdapter scrapes the SkinDeck authenticated market feed.
type skindeckAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newSkindeck(deps Deps, cfg config.ScraperConfig) Adapter {
	return &skindeckAdapter{deps: deps, cfg: cfg}
}

func (a *skindeckAdapter) Venue() domain.Venue { return domain.VenueSkindeck }

func (a *skindeckAdapter) Plan(context.Context) (FetchPlan, error) {
	pageSize := a.cfg.PageSize
	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf("https://api.skindeck.com/client/market?page=%d&limit=%d&sort=price_desc", page+1, pageSize)
		},
		MaxPages: a.cfg.MaxPages,
	}, nil
}

type skindeckItem struct {
	MarketHashName string `json:"market_hash_name"`
	Offer          struct {
		Price json.Number `json:"price"`
	} `json:"offer"`
}

func (a *skindeckAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Success bool           `json:"success"`
		Items   []skindeckItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.MarketHashName)
		if name == "" {
			continue
		}
		price, err := it.Offer.Price.Float64()
		if err != nil || price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueSkindeck,
			URL:      "https://skindeck.com/listings?query=" + encodePath(name),
		})
	}
	return listings, nil
}
