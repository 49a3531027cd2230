package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/storage"
)

const steamHistogramURL = "https://steamcommunity.com/market/itemordershistogram?country=PK&language=english&currency=1&item_nameid=%d&two_factor=0&norender=1"

// steamMarketAdapter queries the Steam order histogram per item nameid and
// records the highest buy order as the item's price. It needs the
// item_nameids index harvested by the steamid adapter.
type steamMarketAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newSteamMarket(deps Deps, cfg config.ScraperConfig) Adapter {
	return &steamMarketAdapter{deps: deps, cfg: cfg}
}

func (a *steamMarketAdapter) Venue() domain.Venue { return domain.VenueSteamMarket }

func (a *steamMarketAdapter) Plan(context.Context) (FetchPlan, error) {
	ids, err := a.deps.Store.ReadNameIDs()
	if err != nil {
		return FetchPlan{}, err
	}
	if len(ids) == 0 {
		return FetchPlan{}, fmt.Errorf("steam market: %w: item_nameids.json (run the steamid adapter first)", domain.ErrNotFound)
	}
	usable := make([]storage.NameID, 0, len(ids))
	for _, id := range ids {
		if id.ID > 0 && id.Name != "" {
			usable = append(usable, id)
		}
	}
	return FetchPlan{
		Kind:  PlanNameIDBatch,
		Items: usable,
		ItemURL: func(item storage.NameID) string {
			return fmt.Sprintf(steamHistogramURL, item.ID)
		},
	}, nil
}

func (a *steamMarketAdapter) Parse([]byte) ([]domain.Listing, error) {
	return nil, &domain.ParseError{Venue: a.Venue(), Reason: "nameid batch adapter has no page parser"}
}

// ParseBatchItem decodes one histogram response. Items with no buy orders
// are skipped rather than reported at zero.
func (a *steamMarketAdapter) ParseBatchItem(data []byte, item storage.NameID) (*domain.Listing, error) {
	var payload struct {
		Success         int             `json:"success"`
		HighestBuyOrder json.RawMessage `json:"highest_buy_order"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}
	if payload.Success != 1 {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "histogram reported failure"}
	}

	cents := parseCents(payload.HighestBuyOrder)
	if cents <= 0 {
		return nil, nil
	}
	return &domain.Listing{
		Item:     item.Name,
		Price:    math.Round(float64(cents)) / 100,
		Platform: domain.VenueSteamMarket,
		Extra:    map[string]any{"item_nameid": item.ID},
	}, nil
}

// parseCents reads a cent amount that Steam serializes as either a string
// or a number.
func parseCents(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	return 0
}
