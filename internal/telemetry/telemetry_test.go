package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/skinarb/internal/domain"
)

func TestRecorderAggregates(t *testing.T) {
	r := NewRecorder(nil)
	require.NotEmpty(t, r.SessionID())

	r.RecordRequest(domain.VenueWaxpeer, 10*time.Millisecond, true)
	r.RecordRequest(domain.VenueWaxpeer, 30*time.Millisecond, true)
	r.RecordRequest(domain.VenueWaxpeer, 20*time.Millisecond, false)
	r.RecordItems(domain.VenueWaxpeer, 42)
	r.RecordAdapter(AdapterResult{Venue: domain.VenueWaxpeer, Status: StatusOK, Items: 42})

	assert.InDelta(t, 2.0/3.0, r.SuccessRate(domain.VenueWaxpeer), 1e-9)
	assert.Equal(t, 20*time.Millisecond, r.AvgLatency(domain.VenueWaxpeer))
	assert.Equal(t, 1.0, r.SuccessRate(domain.VenueSkinport), "no traffic scores neutral")

	rep := r.Report()
	assert.Equal(t, int64(3), rep.Requests)
	assert.Equal(t, int64(1), rep.Failures)
	assert.Equal(t, int64(42), rep.Items)
	require.Len(t, rep.Adapters, 1)
	assert.Equal(t, StatusOK, rep.Adapters[0].Status)
}

func TestRecorderWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRecorder(m)

	r.RecordRequest(domain.VenueSkinport, 5*time.Millisecond, true)
	r.RecordItems(domain.VenueSkinport, 7)
	m.AddOpportunities(3)
	m.SetPoolScore("pool_1", 2.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["skinarb_requests_total"])
	assert.True(t, names["skinarb_request_duration_seconds"])
	assert.True(t, names["skinarb_items_scraped_total"])
	assert.True(t, names["skinarb_opportunities_total"])
	assert.True(t, names["skinarb_proxy_pool_score"])
}
