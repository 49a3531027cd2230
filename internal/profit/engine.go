package profit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mfigueredo/skinarb/internal/cache"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/storage"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// venueURLs maps each buy venue to its search/deep-link template. The
// encoded item name is appended.
var venueURLs = map[domain.Venue]string{
	domain.VenueWaxpeer:     "https://waxpeer.com/item/cs-go/",
	domain.VenueCSDeals:     "https://cs.deals/market/",
	domain.VenueEmpire:      "https://csgoempire.com/shop/",
	domain.VenueSkinport:    "https://skinport.com/market/730?search=",
	domain.VenueBitskins:    "https://bitskins.com/market/730/search?market_hash_name=",
	domain.VenueCSTrade:     "https://cs.trade/csgo-skins?search=",
	domain.VenueMarketCSGO:  "https://market.csgo.com/?search=",
	domain.VenueTradeit:     "https://tradeit.gg/csgo/trade?search=",
	domain.VenueSkindeck:    "https://skindeck.com/listings?query=",
	domain.VenueRapidskins:  "https://rapidskins.com/item/",
	domain.VenueManncoStore: "https://mannco.store/item/730/",
	domain.VenueShadowpay:   "https://shadowpay.com/csgo?search=",
	domain.VenueSkinout:     "https://skinout.gg/market/cs2?item=",
	domain.VenueLisskins:    "https://lis-skins.com/market_730.html?search_item=",
	domain.VenueWhite:       "https://white.market/search?game[]=CS2&query=",
}

const steamURLBase = "https://steamcommunity.com/market/listings/730/"

const steamReferenceCacheKey = "steam_reference"

// Params selects one profitability computation. A non-nil Filter preset wins
// over the engine defaults for the thresholds it carries.
type Params struct {
	Mode                string
	MinProfitPercentage float64
	MinPrice            float64
	MaxResults          int
	Filter              *config.SearchFilter
}

// Engine computes arbitrage opportunities from the persisted catalogs.
type Engine struct {
	store   *storage.Store
	cache   *cache.Memory
	cfg     config.ProfitabilityConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. cache and metrics may be nil.
func NewEngine(store *storage.Store, kv *cache.Memory, cfg config.ProfitabilityConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		cache:   kv,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "profitability")),
	}
}

// DefaultParams returns Params seeded from the engine configuration.
func (e *Engine) DefaultParams() Params {
	return Params{
		Mode:                e.cfg.Mode,
		MinProfitPercentage: e.cfg.MinProfitPercentage,
		MinPrice:            e.cfg.MinPrice,
		MaxResults:          e.cfg.MaxResults,
	}
}

// SteamReference assembles the reference price table by unioning all
// Steam-origin snapshots, keeping the maximum price per name. The table is
// cached for the configured TTL.
func (e *Engine) SteamReference(ctx context.Context) (domain.SteamReference, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(steamReferenceCacheKey); ok {
			if ref, ok := v.(domain.SteamReference); ok {
				return ref, nil
			}
		}
	}

	ref := make(domain.SteamReference)
	for _, venue := range domain.AllVenues {
		if !venue.SteamOrigin() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listings, err := e.store.ReadSnapshot(venue)
		if err != nil {
			e.logger.Warn("steam snapshot unreadable",
				slog.String("venue", string(venue)),
				slog.String("error", err.Error()),
			)
			continue
		}
		ref.Merge(domain.VenueSnapshot{Venue: venue, Listings: listings})
	}

	if len(ref) == 0 {
		return nil, fmt.Errorf("profit: no steam reference data available")
	}
	if e.cache != nil {
		e.cache.Set(steamReferenceCacheKey, ref, e.cfg.CacheTTL.Duration)
	}
	e.logger.Info("steam reference assembled", slog.Int("items", len(ref)))
	return ref, nil
}

// Opportunities joins every non-Steam venue catalog against the Steam
// reference and returns the ranked list.
func (e *Engine) Opportunities(ctx context.Context, p Params) ([]domain.Opportunity, error) {
	p = applyFilter(p)

	ref, err := e.SteamReference(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var opps []domain.Opportunity
	venuesScanned, itemsAnalyzed := 0, 0

	for _, venue := range domain.AllVenues {
		if venue.SteamOrigin() || !venueAllowed(venue, p.Filter) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listings, err := e.store.ReadSnapshot(venue)
		if err != nil {
			e.logger.Warn("venue snapshot unreadable",
				slog.String("venue", string(venue)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(listings) == 0 {
			continue
		}
		venuesScanned++

		for _, l := range listings {
			itemsAnalyzed++
			name := strings.TrimSpace(l.Item)
			if name == "" || l.Price < p.MinPrice {
				continue
			}
			if p.Filter != nil {
				if p.Filter.MaxPrice > 0 && l.Price > p.Filter.MaxPrice {
					continue
				}
				if p.Filter.Query != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(p.Filter.Query)) {
					continue
				}
			}

			steamGross, ok := ref[name]
			if !ok || steamGross <= l.Price {
				continue
			}

			var net, profitAbs, profitPct float64
			if p.Mode == "complete" {
				profitAbs, profitPct = ProfitMargin(steamGross, l.Price)
				net = NetPrice(steamGross)
			} else {
				net = steamGross
				profitAbs = steamGross - l.Price
				profitPct = profitAbs / l.Price
			}
			if profitPct < p.MinProfitPercentage {
				continue
			}

			buyURL := l.URL
			if buyURL == "" {
				buyURL = VenueURL(venue, name)
			}
			opps = append(opps, domain.Opportunity{
				Item:             name,
				BuyPrice:         l.Price,
				BuyVenue:         venue,
				BuyURL:           buyURL,
				SteamPrice:       steamGross,
				NetSteamPrice:    net,
				ProfitPercentage: profitPct,
				ProfitAbsolute:   profitAbs,
				SteamURL:         SteamURL(name),
				Timestamp:        now,
			})
		}
	}

	sortOpportunities(opps)
	if p.MaxResults > 0 && len(opps) > p.MaxResults {
		opps = opps[:p.MaxResults]
	}

	e.logger.Info("profitability analysis complete",
		slog.String("mode", p.Mode),
		slog.Int("venues", venuesScanned),
		slog.Int("items_analyzed", itemsAnalyzed),
		slog.Int("opportunities", len(opps)),
	)
	return opps, nil
}

// Run computes opportunities and persists them into the archive.
func (e *Engine) Run(ctx context.Context, p Params) (domain.OpportunityArchive, error) {
	opps, err := e.Opportunities(ctx, p)
	if err != nil {
		return domain.OpportunityArchive{}, err
	}
	if e.metrics != nil {
		e.metrics.AddOpportunities(len(opps))
	}
	mode := p.Mode
	if mode == "" {
		mode = e.cfg.Mode
	}
	entry := domain.ArchiveEntry{
		Timestamp:          time.Now().UTC(),
		TotalOpportunities: len(opps),
		Mode:               mode,
		Opportunities:      opps,
	}
	return e.store.PushArchive(entry)
}

// sortOpportunities orders by profit percentage descending; equal
// percentages by higher absolute profit, then lexicographic name.
func sortOpportunities(opps []domain.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.ProfitPercentage != b.ProfitPercentage {
			return a.ProfitPercentage > b.ProfitPercentage
		}
		if a.ProfitAbsolute != b.ProfitAbsolute {
			return a.ProfitAbsolute > b.ProfitAbsolute
		}
		return a.Item < b.Item
	})
}

// applyFilter lets a selected preset win over the engine defaults.
func applyFilter(p Params) Params {
	if p.Filter == nil {
		return p
	}
	if p.Filter.MinProfitPercentage > 0 {
		p.MinProfitPercentage = p.Filter.MinProfitPercentage
	}
	if p.Filter.MinPrice > 0 {
		p.MinPrice = p.Filter.MinPrice
	}
	return p
}

func venueAllowed(venue domain.Venue, f *config.SearchFilter) bool {
	if f == nil || len(f.Platforms) == 0 {
		return true
	}
	for _, p := range f.Platforms {
		if domain.Venue(p) == venue {
			return true
		}
	}
	return false
}

// EncodeItemName URL-encodes an item name the way every venue template
// expects: spaces to %20 and pipes to %7C.
func EncodeItemName(name string) string {
	name = strings.ReplaceAll(name, " ", "%20")
	return strings.ReplaceAll(name, "|", "%7C")
}

// DecodeItemName reverses EncodeItemName.
func DecodeItemName(encoded string) string {
	encoded = strings.ReplaceAll(encoded, "%20", " ")
	return strings.ReplaceAll(encoded, "%7C", "|")
}

// VenueURL builds the deep link for an item on a buy venue.
func VenueURL(venue domain.Venue, name string) string {
	base, ok := venueURLs[venue]
	if !ok {
		return ""
	}
	return base + EncodeItemName(name)
}

// SteamURL builds the Steam Community Market listing URL for an item.
func SteamURL(name string) string {
	return steamURLBase + EncodeItemName(name)
}
