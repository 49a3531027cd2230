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

// waxpeerAdapter scrapes the Waxpeer price API. Prices arrive in cents.
type waxpeerAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newWaxpeer(deps Deps, cfg config.ScraperConfig) Adapter {
	return &waxpeerAdapter{deps: deps, cfg: cfg}
}

func (a *waxpeerAdapter) Venue() domain.Venue { return domain.VenueWaxpeer }

func (a *waxpeerAdapter) Plan(context.Context) (FetchPlan, error) {
	pageSize := a.cfg.PageSize
	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf("https://api.waxpeer.com/v1/prices?game=csgo&offset=%d&limit=%d", page*pageSize, pageSize)
		},
		MaxPages: a.cfg.MaxPages,
	}, nil
}

type waxpeerItem struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Count      int    `json:"count"`
	SteamPrice int64  `json:"steam_price"`
	Img        string `json:"img"`
	Tradable   *bool  `json:"tradable"`
}

func (a *waxpeerAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Items []waxpeerItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}

	listings := make([]domain.Listing, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Price <= 0 {
			continue
		}
		extra := map[string]any{"image": it.Img}
		if it.SteamPrice > 0 {
			extra["steam_price"] = float64(it.SteamPrice) / 100.0
		}
		if it.Tradable != nil {
			extra["tradable"] = *it.Tradable
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    float64(it.Price) / 100.0,
			Platform: domain.VenueWaxpeer,
			URL:      "https://waxpeer.com/item/cs-go/" + encodePath(name),
			Quantity: domain.IntPtr(it.Count),
			Extra:    extra,
		})
	}
	return listings, nil
}

// encodePath keeps venue deep links readable: spaces and pipes only.
func encodePath(name string) string {
	name = strings.ReplaceAll(name, " ", "%20")
	return strings.ReplaceAll(name, "|", "%7C")
}

// atoiSafe parses venue quantity fields that arrive as either number or
// string.
func atoiSafe(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			return &v
		}
	}
	return nil
}
