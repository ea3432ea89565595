// Package metrics exposes Prometheus counters for pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogenricher"

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Pages fetched by kind and outcome.",
	}, []string{"kind", "outcome"})

	articlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_ingested_total",
		Help:      "Ingestion results per article.",
	}, []string{"outcome"})

	articlesEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_enriched_total",
		Help:      "Enrichment results per article.",
	}, []string{"outcome"})

	rewriteTier = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rewrite_tier_total",
		Help:      "Rewrites by the tier that produced the final text.",
	}, []string{"tier"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"run"})
)

// ObservePageFetch counts a page fetch; kind is "index", "article" or "reference".
func ObservePageFetch(kind string, err error) {
	pagesFetched.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveIngested counts one ingestion outcome ("created", "skipped", "failed").
func ObserveIngested(result string) {
	articlesIngested.WithLabelValues(result).Inc()
}

// ObserveEnriched counts one enrichment outcome.
func ObserveEnriched(result string) {
	articlesEnriched.WithLabelValues(result).Inc()
}

// ObserveRewrite counts the tier a rewrite ended in.
func ObserveRewrite(tier string) {
	rewriteTier.WithLabelValues(tier).Inc()
}

// ObserveRun records how long a run took.
func ObserveRun(run string, seconds float64) {
	runDuration.WithLabelValues(run).Observe(seconds)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
