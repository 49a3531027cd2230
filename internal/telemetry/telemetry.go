// Package telemetry records per-request latencies, adapter success rates,
// and session reports. The application reads the session report at the end
// of a run; the orchestrator and the proxy manager do not read the per-venue
// aggregates. The same events also feed the Prometheus collectors.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueredo/skinarb/internal/domain"
)

// maxLatencySamples bounds the per-venue latency ring.
const maxLatencySamples = 100

// AdapterStatus is the terminal state of one adapter run.
type AdapterStatus string

const (
	StatusOK      AdapterStatus = "ok"
	StatusFailed  AdapterStatus = "failed"
	StatusPartial AdapterStatus = "partial"
	StatusTimeout AdapterStatus = "timeout"
	StatusSkipped AdapterStatus = "skipped"
)

// AdapterResult summarizes one adapter run for the session report.
type AdapterResult struct {
	Venue   domain.Venue  `json:"venue"`
	Status  AdapterStatus `json:"status"`
	Items   int           `json:"items"`
	Elapsed time.Duration `json:"elapsed"`
	Reason  string        `json:"reason,omitempty"`
}

// venueStats accumulates request counters for a single venue.
type venueStats struct {
	requests  int64
	failures  int64
	items     int64
	latencies []time.Duration
}

// Recorder aggregates telemetry for one process. It is safe for concurrent
// use.
type Recorder struct {
	mu      sync.Mutex
	session uuid.UUID
	started time.Time
	venues  map[domain.Venue]*venueStats
	results []AdapterResult
	metrics *Metrics
}

// NewRecorder creates a Recorder with a fresh session ID. metrics may be nil
// when Prometheus export is not wanted (tests).
func NewRecorder(metrics *Metrics) *Recorder {
	return &Recorder{
		session: uuid.New(),
		started: time.Now(),
		venues:  make(map[domain.Venue]*venueStats),
		metrics: metrics,
	}
}

// SessionID returns the process-unique telemetry session identifier.
func (r *Recorder) SessionID() string { return r.session.String() }

func (r *Recorder) venue(v domain.Venue) *venueStats {
	vs, ok := r.venues[v]
	if !ok {
		vs = &venueStats{}
		r.venues[v] = vs
	}
	return vs
}

// RecordRequest records the outcome and latency of one HTTP request.
// Latency is recorded on both success and failure.
func (r *Recorder) RecordRequest(venue domain.Venue, latency time.Duration, success bool) {
	r.mu.Lock()
	vs := r.venue(venue)
	vs.requests++
	if !success {
		vs.failures++
	}
	vs.latencies = append(vs.latencies, latency)
	if len(vs.latencies) > maxLatencySamples {
		vs.latencies = vs.latencies[len(vs.latencies)-maxLatencySamples:]
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveRequest(string(venue), latency, success)
	}
}

// RecordItems records the number of items an adapter persisted.
func (r *Recorder) RecordItems(venue domain.Venue, n int) {
	r.mu.Lock()
	r.venue(venue).items += int64(n)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.AddItems(string(venue), n)
	}
}

// RecordAdapter records the terminal result of one adapter run.
func (r *Recorder) RecordAdapter(res AdapterResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// SuccessRate returns the request success rate for a venue in [0, 1].
// Venues with no requests report 1.
func (r *Recorder) SuccessRate(venue domain.Venue) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs, ok := r.venues[venue]
	if !ok || vs.requests == 0 {
		return 1
	}
	return float64(vs.requests-vs.failures) / float64(vs.requests)
}

// AvgLatency returns the mean of the recent latency samples for a venue.
func (r *Recorder) AvgLatency(venue domain.Venue) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs, ok := r.venues[venue]
	if !ok || len(vs.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range vs.latencies {
		total += d
	}
	return total / time.Duration(len(vs.latencies))
}

// SessionReport is the final summary of one process run.
type SessionReport struct {
	SessionID string          `json:"session_id"`
	Started   time.Time       `json:"started"`
	Elapsed   time.Duration   `json:"elapsed"`
	Adapters  []AdapterResult `json:"adapters"`
	Requests  int64           `json:"requests"`
	Failures  int64           `json:"failures"`
	Items     int64           `json:"items"`
}

// Report snapshots the session aggregates.
func (r *Recorder) Report() SessionReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := SessionReport{
		SessionID: r.session.String(),
		Started:   r.started,
		Elapsed:   time.Since(r.started),
		Adapters:  append([]AdapterResult(nil), r.results...),
	}
	for _, vs := range r.venues {
		rep.Requests += vs.requests
		rep.Failures += vs.failures
		rep.Items += vs.items
	}
	return rep
}
