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

// shadowpayAdapter scrapes the ShadowPay price feed (USD). The venue
// requires an API key.
type shadowpayAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newShadowpay(deps Deps, cfg config.ScraperConfig) Adapter {
	return &shadowpayAdapter{deps: deps, cfg: cfg}
}

func (a *shadowpayAdapter) Venue() domain.Venue { return domain.VenueShadowpay }

func (a *shadowpayAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://api.shadowpay.com/api/v2/user/items/prices?project=csgo",
	}, nil
}

type shadowpayItem struct {
	SteamMarketHashName string      `json:"steam_market_hash_name"`
	Price               json.Number `json:"price"`
	Count               int         `json:"count"`
}

func (a *shadowpayAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Data []shadowpayItem `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.Data))
	for _, it := range payload.Data {
		name := strings.TrimSpace(it.SteamMarketHashName)
		if name == "" {
			continue
		}
		price, err := strconv.ParseFloat(it.Price.String(), 64)
		if err != nil || price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueShadowpay,
			URL:      "https://shadowpay.com/csgo?search=" + encodePath(name) + "&sort_column=price&sort_dir=asc",
			Quantity: domain.IntPtr(it.Count),
		})
	}
	return listings, nil
}
