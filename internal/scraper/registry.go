package scraper

import (
	"fmt"
	"sort"

	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
)

// constructors maps every venue in the closed set to its adapter factory.
var constructors = map[domain.Venue]func(Deps, config.ScraperConfig) Adapter{
	domain.VenueWaxpeer:      newWaxpeer,
	domain.VenueSkinport:     newSkinport,
	domain.VenueBitskins:     newBitskins,
	domain.VenueCSDeals:      newCSDeals,
	domain.VenueCSTrade:      newCSTrade,
	domain.VenueEmpire:       newEmpire,
	domain.VenueShadowpay:    newShadowpay,
	domain.VenueLisskins:     newLisskins,
	domain.VenueMarketCSGO:   newMarketCSGO,
	domain.VenueManncoStore:  newManncoStore,
	domain.VenueTradeit:      newTradeit,
	domain.VenueRapidskins:   newRapidskins,
	domain.VenueSkindeck:     newSkindeck,
	domain.VenueSkinout:      newSkinout,
	domain.VenueWhite:        newWhite,
	domain.VenueSteamListing: newSteamListing,
	domain.VenueSteamMarket:  newSteamMarket,
	domain.VenueSteamID:      newSteamID,
}

// presets are the named venue groups the orchestrator accepts as a
// selection.
var presets = map[string][]domain.Venue{
	"fast": {
		domain.VenueSkinport, domain.VenueCSDeals, domain.VenueBitskins,
		domain.VenueMarketCSGO, domain.VenueWhite, domain.VenueCSTrade,
		domain.VenueTradeit,
	},
	"api": {
		domain.VenueWaxpeer, domain.VenueSkinport, domain.VenueBitskins,
		domain.VenueCSDeals, domain.VenueCSTrade, domain.VenueEmpire,
		domain.VenueShadowpay, domain.VenueLisskins, domain.VenueMarketCSGO,
		domain.VenueManncoStore, domain.VenueTradeit, domain.VenueSkindeck,
		domain.VenueSkinout, domain.VenueWhite,
	},
	"essential": {
		domain.VenueWaxpeer, domain.VenueSkinport, domain.VenueCSDeals,
		domain.VenueBitskins, domain.VenueMarketCSGO,
	},
	"steam": {
		domain.VenueSteamListing, domain.VenueSteamID, domain.VenueSteamMarket,
	},
}

// New constructs the adapter for a venue.
func New(venue domain.Venue, deps Deps, cfg config.ScraperConfig) (Adapter, error) {
	ctor, ok := constructors[venue]
	if !ok {
		return nil, fmt.Errorf("scraper: unknown venue %q", venue)
	}
	return ctor(deps, cfg), nil
}

// Resolve expands a selection into a venue list. A selection is "all", a
// preset name, or explicit venue identifiers.
func Resolve(selection []string) ([]domain.Venue, error) {
	if len(selection) == 0 {
		return append([]domain.Venue(nil), domain.AllVenues...), nil
	}
	if len(selection) == 1 {
		switch {
		case selection[0] == "all":
			return append([]domain.Venue(nil), domain.AllVenues...), nil
		default:
			if group, ok := presets[selection[0]]; ok {
				return append([]domain.Venue(nil), group...), nil
			}
		}
	}

	seen := make(map[domain.Venue]bool, len(selection))
	var venues []domain.Venue
	for _, s := range selection {
		v := domain.Venue(s)
		if !v.Valid() {
			return nil, fmt.Errorf("%w: unknown venue or preset %q", domain.ErrConfig, s)
		}
		if !seen[v] {
			seen[v] = true
			venues = append(venues, v)
		}
	}
	return venues, nil
}

// Presets lists the available preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
