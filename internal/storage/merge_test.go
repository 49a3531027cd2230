package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/paths"
)

func testStore(t *testing.T) (*Store, *paths.Registry) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg, err := paths.New(t.TempDir(), logger)
	require.NoError(t, err)
	return New(reg, logger), reg
}

func listing(name string, price float64) domain.Listing {
	return domain.Listing{Item: name, Price: price, Platform: domain.VenueSteamListing}
}

func TestMergeListingsThreshold(t *testing.T) {
	existing := []domain.Listing{listing("A", 1.00)}

	// A sub-cent move is ignored; the new name is inserted.
	merged, stats := MergeListings(existing, []domain.Listing{
		listing("A", 1.005),
		listing("B", 2.00),
	})
	require.Len(t, merged, 2)
	byName := indexByName(merged)
	assert.InDelta(t, 1.00, byName["A"].Price, 1e-9)
	assert.InDelta(t, 2.00, byName["B"].Price, 1e-9)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Duplicates)

	// A real move updates.
	merged, stats = MergeListings(merged, []domain.Listing{listing("A", 1.25)})
	byName = indexByName(merged)
	assert.InDelta(t, 1.25, byName["A"].Price, 1e-9)
	assert.InDelta(t, 2.00, byName["B"].Price, 1e-9)
	assert.Equal(t, 1, stats.Updated)
}

func TestMergeListingsIdempotent(t *testing.T) {
	page := []domain.Listing{listing("A", 1.50), listing("B", 2.75), listing("C", 0.25)}

	once, _ := MergeListings(nil, page)
	twice, stats := MergeListings(once, page)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, len(page), stats.Duplicates)
}

func TestMergeListingsAssetUpgrade(t *testing.T) {
	existing := []domain.Listing{{
		Item:     "A",
		Price:    1.00,
		Platform: domain.VenueSteamListing,
		URL:      "https://community.fastly.steamstatic.com/economy/image/abc",
	}}

	merged, stats := MergeListings(existing, []domain.Listing{{
		Item:     "A",
		Price:    1.00,
		Platform: domain.VenueSteamListing,
		URL:      "/cache/images/ab/abc123.jpg",
	}})
	assert.Equal(t, "/cache/images/ab/abc123.jpg", merged[0].URL)
	assert.Equal(t, 1, stats.Updated)

	// A remote URL never downgrades a cached one.
	merged, stats = MergeListings(merged, []domain.Listing{{
		Item:     "A",
		Price:    1.00,
		Platform: domain.VenueSteamListing,
		URL:      "https://community.fastly.steamstatic.com/economy/image/other",
	}})
	assert.Equal(t, "/cache/images/ab/abc123.jpg", merged[0].URL)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestMergeListingsSorted(t *testing.T) {
	merged, _ := MergeListings(nil, []domain.Listing{
		listing("Zeta", 1), listing("Alpha", 2), listing("Mid", 3),
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "Alpha", merged[0].Item)
	assert.Equal(t, "Mid", merged[1].Item)
	assert.Equal(t, "Zeta", merged[2].Item)
}

func TestMergeSnapshotPersists(t *testing.T) {
	store, _ := testStore(t)
	snap := domain.VenueSnapshot{
		Venue:     domain.VenueSteamListing,
		Timestamp: time.Now(),
		Listings:  []domain.Listing{listing("A", 1.00)},
	}
	_, err := store.MergeSnapshot(snap)
	require.NoError(t, err)

	snap.Listings = []domain.Listing{listing("A", 1.005), listing("B", 2.00)}
	stats, err := store.MergeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Duplicates)

	final, err := store.ReadSnapshot(domain.VenueSteamListing)
	require.NoError(t, err)
	byName := indexByName(final)
	assert.InDelta(t, 1.00, byName["A"].Price, 1e-9)
	assert.InDelta(t, 2.00, byName["B"].Price, 1e-9)
}

func TestWriteSnapshotAtomicShape(t *testing.T) {
	store, reg := testStore(t)
	require.NoError(t, store.WriteSnapshot(domain.VenueSnapshot{
		Venue:     domain.VenueWaxpeer,
		Timestamp: time.Now(),
		Listings: []domain.Listing{{
			Item:     "A",
			Price:    1.23,
			Platform: domain.VenueWaxpeer,
			Quantity: domain.IntPtr(4),
		}},
	}))

	// The on-disk artifact is a valid array of canonical records, and no
	// temp files are left behind.
	raw, err := os.ReadFile(reg.VenueDataFile("waxpeer"))
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0]["Item"])
	assert.Equal(t, 1.23, records[0]["Price"])
	assert.Equal(t, "waxpeer", records[0]["Platform"])

	entries, err := os.ReadDir(reg.DataDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.Name()[0] == '.', "leftover temp file %s", e.Name())
	}
}

func TestNameIDRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	ids, err := store.ReadNameIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	want := []NameID{{ID: 12345, Name: "A"}, {ID: 678, Name: "B"}}
	require.NoError(t, store.WriteNameIDs(want))

	got, err := store.ReadNameIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
}

func indexByName(listings []domain.Listing) map[string]domain.Listing {
	out := make(map[string]domain.Listing, len(listings))
	for _, l := range listings {
		out[l.Item] = l
	}
	return out
}
