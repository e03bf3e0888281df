package marketcache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the cache's prometheus counters, labelled by query kind
// (markets, price, chart, search). A nil *Metrics is a no-op so tests and
// embedded use don't need a registry.
type Metrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
}

// NewMetrics registers the cache counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_cache_hits_total",
			Help: "Queries served from cache within the freshness window.",
		}, []string{"kind"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_cache_misses_total",
			Help: "Queries that went to the network.",
		}, []string{"kind"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_fetch_errors_total",
			Help: "Network fetches that failed.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) hit(key string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(keyKind(key)).Inc()
}

func (m *Metrics) miss(key string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(keyKind(key)).Inc()
}

func (m *Metrics) fetchError(key string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(keyKind(key)).Inc()
}

func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
