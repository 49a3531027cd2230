package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/httpx"
)

const steamSearchURL = "https://steamcommunity.com/market/search/render/?query=&start=%d&count=%d&search_descriptions=0&sort_column=name&sort_dir=asc&appid=730&norender=1"

const steamImageBase = "https://community.fastly.steamstatic.com/economy/image/"

// steamListingAdapter walks the Steam Community Market search listing. The
// catalog is huge and slow-changing, so its snapshot is merged
// incrementally instead of rewritten. Icon URLs are rewritten to their
// locally-cached form when the image cache already holds them.
type steamListingAdapter struct {
	deps Deps
	cfg  config.ScraperConfig
}

func newSteamListing(deps Deps, cfg config.ScraperConfig) Adapter {
	return &steamListingAdapter{deps: deps, cfg: cfg}
}

func (a *steamListingAdapter) Venue() domain.Venue { return domain.VenueSteamListing }

// Plan probes the total listing count with a one-item query, then covers it
// with fixed-size pages.
func (a *steamListingAdapter) Plan(ctx context.Context) (FetchPlan, error) {
	pageSize := a.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	resp, err := a.deps.Engine.Do(ctx, httpx.Request{
		URL:      fmt.Sprintf(steamSearchURL, 0, 1),
		Timeout:  a.cfg.Timeout.Duration,
		UseProxy: a.cfg.UseProxy,
		Venue:    a.Venue(),
	})
	if err != nil {
		return FetchPlan{}, fmt.Errorf("steam listing count probe: %w", err)
	}
	var probe struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.Unmarshal(resp.Body, &probe); err != nil {
		return FetchPlan{}, &domain.ParseError{Venue: a.Venue(), Reason: "count probe: " + err.Error()}
	}

	pages := (probe.TotalCount + pageSize - 1) / pageSize
	if a.cfg.MaxPages > 0 && pages > a.cfg.MaxPages {
		pages = a.cfg.MaxPages
	}

	return FetchPlan{
		Kind: PlanPaginated,
		PageURL: func(page int) string {
			return fmt.Sprintf(steamSearchURL, page*pageSize, pageSize)
		},
		MaxPages: pages,
	}, nil
}

type steamSearchResult struct {
	HashName         string `json:"hash_name"`
	Name             string `json:"name"`
	SellPrice        int64  `json:"sell_price"`
	SellListings     int    `json:"sell_listings"`
	AssetDescription struct {
		IconURL string `json:"icon_url"`
	} `json:"asset_description"`
}

func (a *steamListingAdapter) Parse(data []byte) ([]domain.Listing, error) {
	var payload struct {
		Success bool                `json:"success"`
		Results []steamSearchResult `json:"results"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: err.Error()}
	}
	if !payload.Success {
		return nil, &domain.ParseError{Venue: a.Venue(), Reason: "search render reported failure"}
	}

	listings := make([]domain.Listing, 0, len(payload.Results))
	for _, res := range payload.Results {
		name := strings.TrimSpace(res.HashName)
		if name == "" {
			name = strings.TrimSpace(res.Name)
		}
		if name == "" || res.SellPrice <= 0 {
			continue
		}

		icon := ""
		if res.AssetDescription.IconURL != "" {
			icon = steamImageBase + res.AssetDescription.IconURL
			if local := a.deps.Images.LocalURL(icon); local != "" {
				icon = local
			}
		}
		listings = append(listings, domain.Listing{
			Item:     name,
			Price:    math.Round(float64(res.SellPrice)) / 100,
			Platform: domain.VenueSteamListing,
			URL:      icon,
			Quantity: domain.IntPtr(res.SellListings),
		})
	}
	return listings, nil
}
