package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotDedupAndSort(t *testing.T) {
	now := time.Now()
	snap := NewSnapshot(VenueWaxpeer, now, []Listing{
		{Item: "B", Price: 2.00, Platform: VenueWaxpeer},
		{Item: "A", Price: 1.50, Platform: VenueWaxpeer},
		{Item: "A", Price: 1.00, Platform: VenueWaxpeer},
		{Item: "A", Price: 1.75, Platform: VenueWaxpeer},
	})

	require.Len(t, snap.Listings, 2)
	assert.Equal(t, "A", snap.Listings[0].Item)
	assert.InDelta(t, 1.00, snap.Listings[0].Price, 1e-9, "lowest price survives")
	assert.Equal(t, "B", snap.Listings[1].Item)
	assert.Equal(t, now, snap.Timestamp)
}

func TestSteamReferenceMaxWins(t *testing.T) {
	ref := make(SteamReference)
	ref.Merge(VenueSnapshot{Listings: []Listing{
		{Item: "X", Price: 10.00},
		{Item: " ", Price: 5.00},
		{Item: "Zero", Price: 0},
	}})
	ref.Merge(VenueSnapshot{Listings: []Listing{
		{Item: "X", Price: 8.00},
	}})

	assert.Len(t, ref, 1)
	assert.InDelta(t, 10.00, ref["X"], 1e-9)
}

func TestArchivePushRing(t *testing.T) {
	var a OpportunityArchive
	for i := 0; i < 15; i++ {
		a.Push(ArchiveEntry{Timestamp: time.Unix(int64(i), 0), Mode: "complete"})
	}

	assert.Equal(t, time.Unix(14, 0), a.Current.Timestamp)
	assert.Equal(t, a.Current.Timestamp, a.LastUpdated)
	require.Len(t, a.History, ArchiveHistoryLimit)
	// Oldest retained entry slid forward.
	assert.Equal(t, time.Unix(4, 0), a.History[0].Timestamp)
	assert.Equal(t, time.Unix(13, 0), a.History[len(a.History)-1].Timestamp)
}

func TestVenueClosedSet(t *testing.T) {
	assert.True(t, Venue("waxpeer").Valid())
	assert.False(t, Venue("ebay").Valid())
	assert.True(t, VenueSteamListing.SteamOrigin())
	assert.True(t, VenueSteamMarket.SteamOrigin())
	assert.False(t, VenueWaxpeer.SteamOrigin())
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(&HTTPError{Status: 500}))
	assert.True(t, Retryable(&HTTPError{Status: 429}))
	assert.False(t, Retryable(&HTTPError{Status: 404}))
	assert.False(t, Retryable(&HTTPError{Status: 403}))
	assert.True(t, Retryable(&NetworkError{Kind: NetworkTimeout, Err: errors.New("t")}))
	assert.True(t, Retryable(ErrRateLimited))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(&ParseError{Venue: VenueWaxpeer, Reason: "x"}))
	assert.False(t, Retryable(nil))

	wrapped := &PersistenceError{Path: "p", Err: errors.New("disk full")}
	assert.False(t, Retryable(wrapped))
	assert.ErrorContains(t, wrapped, "disk full")
}
