package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the scraping counters to Prometheus. All collectors are
// registered against the registry passed to NewMetrics so tests can use an
// isolated registry.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	itemsScraped    *prometheus.CounterVec
	opportunities   prometheus.Counter
	proxyPoolScore  *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinarb_requests_total",
			Help: "Outbound HTTP requests by venue and outcome.",
		}, []string{"venue", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skinarb_request_duration_seconds",
			Help:    "Outbound HTTP request latency by venue.",
			Buckets: prometheus.DefBuckets,
		}, []string{"venue"}),
		itemsScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinarb_items_scraped_total",
			Help: "Normalized listings persisted by venue.",
		}, []string{"venue"}),
		opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skinarb_opportunities_total",
			Help: "Arbitrage opportunities emitted by the profitability engine.",
		}),
		proxyPoolScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skinarb_proxy_pool_score",
			Help: "Current health score per proxy pool.",
		}, []string{"pool"}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.itemsScraped, m.opportunities, m.proxyPoolScore)
	return m
}

// ObserveRequest records one request outcome and its latency.
func (m *Metrics) ObserveRequest(venue string, latency time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.requestsTotal.WithLabelValues(venue, outcome).Inc()
	m.requestDuration.WithLabelValues(venue).Observe(latency.Seconds())
}

// AddItems records persisted listings for a venue.
func (m *Metrics) AddItems(venue string, n int) {
	m.itemsScraped.WithLabelValues(venue).Add(float64(n))
}

// AddOpportunities records emitted arbitrage opportunities.
func (m *Metrics) AddOpportunities(n int) {
	m.opportunities.Add(float64(n))
}

// SetPoolScore publishes the current score of a proxy pool.
func (m *Metrics) SetPoolScore(pool string, score float64) {
	m.proxyPoolScore.WithLabelValues(pool).Set(score)
}
