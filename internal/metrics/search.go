package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vistra",
			Name:      "search_requests_total",
			Help:      "Total number of search pipeline runs",
		},
		[]string{"modality", "status"},
	)

	// EnrichmentSkipsTotal counts vector hits dropped during enrichment
	// because no relational row matched the join key. Skips are silent at
	// the API level; this counter keeps them visible to operators.
	EnrichmentSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vistra",
			Name:      "search_enrichment_skips_total",
			Help:      "Vector hits skipped for lack of a matching product row",
		},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vistra",
			Name:      "search_results_count",
			Help:      "Number of enriched results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(EnrichmentSkipsTotal)
	prometheus.MustRegister(SearchResultsCount)
	searchMetricsRegistered = true
}
