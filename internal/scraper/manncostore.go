package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// manncostoreAdapter scrapes the Mannco.store item pages. The endpoint sits
// behind a WAF that fingerprints mainstream HTTP clients, so the venue
// config routes it through the low-level socket client. Prices are integers
// whose last two digits are cents (1250 == 12.50).
type manncostoreAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newManncoStore(deps Deps, cfg config.ScraperConfig) Adapter {
	return &manncostoreAdapter{deps: deps, cfg: cfg}
}

func (a *manncostoreAdapter) Venue() domain.Venue { return domain.VenueManncoStore }

func (a *manncostoreAdapter) Plan(context.Context) (FetchPlan, error) {
	pageSize := a.cfg.PageSize
	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf("https://mannco.store/items/get?price=DESC&page=1&i=0&game=730&skip=%d", page*pageSize)
		},
		MaxPages: a.cfg.MaxPages,
	}, nil
}

type manncostoreItem struct {
	Name  string          `json:"name"`
	Price int64           `json:"price"`
	Stock json.RawMessage `json:"stock"`
}

func (a *manncostoreAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var items []manncostoreItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Price <= 0 {
			continue
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    manncoPrice(it.Price),
			Platform: domain.VenueManncoStore,
			URL:      "https://mannco.store/item/730/" + encodePath(name),
			Quantity: atoiSafe(it.Stock),
		})
	}
	return listings, nil
}

// manncoPrice converts the integer wire format into dollars by splitting
// off the trailing two digits as cents.
func manncoPrice(raw int64) float64 {
	s := strconv.FormatInt(raw, 10)
	if len(s) <= 2 {
		v, _ := strconv.ParseFloat("0."+strings.Repeat("0", 2-len(s))+s, 64)
		return v
	}
	v, _ := strconv.ParseFloat(s[:len(s)-2]+"."+s[len(s)-2:], 64)
	return v
}
