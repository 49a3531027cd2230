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

// empireAdapter scrapes the CSGOEmpire trading items API. Prices arrive as
// coin hundredths and are converted to USD with a configurable coin ratio;
// both forms are exposed in Extra. The venue requires an API key.
type empireAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newEmpire(deps Deps, cfg config.ScraperConfig) Adapter {
	return &empireAdapter{deps: deps, cfg: cfg}
}

func (a *empireAdapter) Venue() domain.Venue { return domain.VenueEmpire }

func (a *empireAdapter) Plan(context.Context) (FetchPlan, error) {
	pageSize := a.cfg.PageSize
	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf("https://csgoempire.com/api/v2/trading/items?per_page=%d&page=%d", pageSize, page+1)
		},
		MaxPages: a.cfg.MaxPages,
	}, nil
}

// conversionRate is the coin→USD ratio. The exact source of the original
// constant is unknown; it is configuration so operators can track it.
func (a *empireAdapter) conversionRate() float64 {
	if a.cfg.ConversionRate > 0 {
		return a.cfg.ConversionRate
	}
	return 0.6154
}

type empireItem struct {
	MarketName  string `json:"market_name"`
	MarketValue int64  `json:"market_value"`
}

func (a *empireAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Data []empireItem `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	rate := a.conversionRate()
	listings := make([]domain.Listing, 0, len(payload.Data))
	for _, it := range payload.Data {
		name := strings.TrimSpace(it.MarketName)
		if name == "" || it.MarketValue <= 0 {
			continue
		}
		coins := float64(it.MarketValue) / 100.0
		usd := math.Round(coins*rate*100) / 100
		if usd < 0.01 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    usd,
			Platform: domain.VenueEmpire,
			URL:      "https://csgoempire.com/shop/" + encodePath(name),
			Extra: map[string]any{
				"price_coins":     coins,
				"conversion_rate": rate,
			},
		})
	}
	return listings, nil
}
