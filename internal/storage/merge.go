package storage

import (
	"sort"
	"strings"

	"github.com/mfigueredo/skinarb/internal/domain"
)

// priceEpsilon is the minimum price movement that counts as a change.
// Steam catalogs are huge and slow-changing; rewriting identical entries on
// every rescrape would churn the whole file for nothing.
const priceEpsilon = 0.01

// MergeStats reports what an incremental merge did.
type MergeStats struct {
	Existing   int `json:"existing"`
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"`
}

// MergeListings folds incoming listings into an existing catalog, keyed by
// item name. Rules, applied per incoming item:
//
//   - unknown name: insert
//   - known name: update the price only when |new − existing| >= 0.01
//   - upgrade the asset URL from its remote form to the locally-cached form
//     when the incoming URL is /static/- or /cache/-prefixed and the stored
//     one is not
//   - otherwise count the item as a duplicate and skip it
//
// The returned slice is sorted by item name. Applying the same page twice is
// equivalent to applying it once.
func MergeListings(existing, incoming []domain.Listing) ([]domain.Listing, MergeStats) {
	byName := make(map[string]domain.Listing, len(existing))
	for _, l := range existing {
		if l.Item != "" {
			byName[l.Item] = l
		}
	}
	stats := MergeStats{Existing: len(byName)}

	for _, in := range incoming {
		if in.Item == "" {
			continue
		}
		cur, ok := byName[in.Item]
		if !ok {
			byName[in.Item] = in
			stats.Added++
			continue
		}

		changed := false
		if diff := in.Price - cur.Price; diff >= priceEpsilon || diff <= -priceEpsilon {
			cur.Price = in.Price
			changed = true
		}
		if upgradesAssetURL(cur.URL, in.URL) {
			cur.URL = in.URL
			changed = true
		}
		if changed {
			byName[in.Item] = cur
			stats.Updated++
		} else {
			stats.Duplicates++
		}
	}

	out := make([]domain.Listing, 0, len(byName))
	for _, l := range byName {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	stats.Total = len(out)
	return out, stats
}

// upgradesAssetURL reports whether incoming references a locally-cached
// asset while the stored URL does not.
func upgradesAssetURL(stored, incoming string) bool {
	return isLocalAsset(incoming) && !isLocalAsset(stored)
}

func isLocalAsset(url string) bool {
	return strings.HasPrefix(url, "/static/") || strings.HasPrefix(url, "/cache/")
}

// MergeSnapshot reads the venue's existing catalog, merges the snapshot's
// listings into it, and persists the result atomically.
func (s *Store) MergeSnapshot(snap domain.VenueSnapshot) (MergeStats, error) {
	existing, err := s.ReadSnapshot(snap.Venue)
	if err != nil {
		return MergeStats{}, err
	}
	merged, stats := MergeListings(existing, snap.Listings)
	snap.Listings = merged
	if err := s.WriteSnapshot(snap); err != nil {
		return stats, err
	}
	return stats, nil
}
