package swap

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "superswap"

// Metrics counts orchestration events. A nil *Metrics records nothing.
type Metrics struct {
	quoteRequests   prometheus.Counter
	quoteDiscarded  prometheus.Counter
	quoteFailures   prometheus.Counter
	swaps           *prometheus.CounterVec
	discoveryPages  prometheus.Counter
	discoveryTokens prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		quoteRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quote_requests_total",
			Help:      "Quote requests issued after the debounce window elapsed.",
		}),
		quoteDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quote_responses_discarded_total",
			Help:      "Quote responses dropped because a newer request was issued or parameters changed.",
		}),
		quoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quote_failures_total",
			Help:      "Quote requests that failed.",
		}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "swaps_total",
			Help:      "Swap executions by outcome.",
		}, []string{"outcome"}),
		discoveryPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "discovery_pages_total",
			Help:      "Asset pages fetched from the indexing service.",
		}),
		discoveryTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "discovery_tokens",
			Help:      "Usable tokens found by the last discovery pass.",
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.quoteRequests, m.quoteDiscarded, m.quoteFailures,
			m.swaps, m.discoveryPages, m.discoveryTokens,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) quoteRequested() {
	if m != nil {
		m.quoteRequests.Inc()
	}
}

func (m *Metrics) quoteDropped() {
	if m != nil {
		m.quoteDiscarded.Inc()
	}
}

func (m *Metrics) quoteFailed() {
	if m != nil {
		m.quoteFailures.Inc()
	}
}

func (m *Metrics) swapFinished(outcome string) {
	if m != nil {
		m.swaps.WithLabelValues(outcome).Inc()
	}
}

// DiscoveryPage records one fetched asset page
func (m *Metrics) DiscoveryPage() {
	if m != nil {
		m.discoveryPages.Inc()
	}
}

// DiscoveryTokens records the size of the discovered token set
func (m *Metrics) DiscoveryTokens(n int) {
	if m != nil {
		m.discoveryTokens.Set(float64(n))
	}
}
