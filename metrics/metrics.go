// Package metrics holds the Prometheus instruments the pipeline and the
// watch daemon record into, plus the scrape endpoint that exposes them.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DiscoveryRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newshound_discovery_runs_total",
			Help: "Total number of discovery runs, labeled by winning method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	ArticlesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newshound_articles_extracted_total",
			Help: "Total number of per-article extraction attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newshound_extraction_duration_seconds",
			Help:    "Duration of single-article extraction in seconds, labeled by fetch method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"fetch_method"},
	)
	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newshound_fetch_retries_total",
			Help: "Total number of HTTP fetch retries.",
		},
	)
	BrowserRecycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newshound_browser_recycles_total",
			Help: "Total number of headless browser teardown-and-relaunch cycles.",
		},
	)
)

func init() {
	prometheus.MustRegister(DiscoveryRuns)
	prometheus.MustRegister(ArticlesExtracted)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(BrowserRecycles)
}

// Expose serves the Prometheus scrape endpoint. It blocks.
func Expose(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
