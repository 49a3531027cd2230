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

// csdealsAdapter scrapes the CS.Deals lowest-price feed. Prices are decimal
// USD strings.
type csdealsAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newCSDeals(deps Deps, cfg config.ScraperConfig) Adapter {
	return &csdealsAdapter{deps: deps, cfg: cfg}
}

func (a *csdealsAdapter) Venue() domain.Venue { return domain.VenueCSDeals }

func (a *csdealsAdapter) Plan(context.Context) (FetchPlan, error) {
	return FetchPlan{
		Kind: PlanSingle,
		URL:  "https://cs.deals/API/IPricing/GetLowestPrices/v1?appid=730",
	}, nil
}

type csdealsItem struct {
	MarketName  string          `json:"marketname"`
	LowestPrice json.Number     `json:"lowest_price"`
	Quantity    json.RawMessage `json:"quantity"`
}

func (a *csdealsAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Success  bool `json:"success"`
		Response struct {
			Items []csdealsItem `json:"items"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}
	if !payload.Success {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "api reported failure"}
	}

	listings := make([]domain.Listing, 0, len(payload.Response.Items))
	for _, it := range payload.Response.Items {
		name := strings.TrimSpace(it.MarketName)
		if name == "" {
			continue
		}
		price, err := strconv.ParseFloat(it.LowestPrice.String(), 64)
		if err != nil || price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(price*100) / 100,
			Platform: domain.VenueCSDeals,
			URL:      "https://cs.deals/new?name=" + encodePath(name) + "&game=csgo&sort=price&sort_desc=0",
			Quantity: atoiSafe(it.Quantity),
		})
	}
	return listings, nil
}
