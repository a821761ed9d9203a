// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lyrahub_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DigestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_digest_runs_total",
			Help: "Total number of digest runs by outcome",
		},
		[]string{"outcome"},
	)

	DigestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lyrahub_digest_run_duration_seconds",
			Help:    "Duration of digest runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_source_fetches_total",
			Help: "Total number of content source fetches by outcome",
		},
		[]string{"outcome"},
	)

	ItemsUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lyrahub_items_upserted_total",
			Help: "Total number of content items upserted",
		},
	)

	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_summaries_total",
			Help: "Total number of summary generations by outcome",
		},
		[]string{"outcome"},
	)

	MailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_mails_total",
			Help: "Total number of digest mails by language and outcome",
		},
		[]string{"lang", "outcome"},
	)

	AskRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_ask_requests_total",
			Help: "Total number of answered questions by mode",
		},
		[]string{"mode"},
	)

	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrahub_search_cache_lookups_total",
			Help: "Total number of online search cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordAPIRequest(method string, route string, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordDigestRun(duration time.Duration, err error) {
	DigestRunDuration.Observe(duration.Seconds())
	DigestRunsTotal.WithLabelValues(outcome(err)).Inc()
}

func RecordSourceFetch(err error) {
	SourceFetchesTotal.WithLabelValues(outcome(err)).Inc()
}

func RecordSummary(err error) {
	SummariesTotal.WithLabelValues(outcome(err)).Inc()
}

func RecordMail(lang string, err error) {
	MailsTotal.WithLabelValues(lang, outcome(err)).Inc()
}

func RecordSearchCache(hit bool) {
	if hit {
		SearchCacheLookups.WithLabelValues("hit").Inc()
		return
	}

	SearchCacheLookups.WithLabelValues("miss").Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}

	return "success"
}
