// Package metrics provides Prometheus metrics for the content pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "content_pipeline"

var (
	// ArticlesFetched counts articles kept after window filtering and dedupe.
	ArticlesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_fetched_total",
			Help:      "Total number of articles kept by fetch runs",
		},
	)

	// SourceFetches counts per-source fetch attempts by status.
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Total number of content source fetches",
		},
		[]string{"status"},
	)

	// Drafts counts generation attempts by result (valid, invalid, error, skipped).
	Drafts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_total",
			Help:      "Total number of draft generation attempts",
		},
		[]string{"result"},
	)

	// PipelineDuration measures full pipeline runs.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	// ApprovalTransitions counts approval link outcomes.
	ApprovalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_transitions_total",
			Help:      "Total number of approval workflow actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	// EmailsSent counts approval emails by status.
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of approval emails attempted",
		},
		[]string{"status"},
	)

	// PostsPublished counts publish transitions by the status they left.
	PostsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_published_total",
			Help:      "Total number of posts published by the sweep",
		},
		[]string{"from"},
	)

	// CronRuns counts scheduled job runs.
	CronRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_total",
			Help:      "Total number of cron job runs",
		},
		[]string{"job", "status"},
	)
)

// RecordFetch records one fetch run.
func RecordFetch(articles, fetched, failed int) {
	ArticlesFetched.Add(float64(articles))
	SourceFetches.WithLabelValues("ok").Add(float64(fetched))
	SourceFetches.WithLabelValues("failed").Add(float64(failed))
}

// RecordApproval records an approval workflow action.
func RecordApproval(action, outcome string) {
	ApprovalTransitions.WithLabelValues(action, outcome).Inc()
}

// RecordEmail records an approval email attempt.
func RecordEmail(err error) {
	if err != nil {
		EmailsSent.WithLabelValues("failed").Inc()
		return
	}
	EmailsSent.WithLabelValues("sent").Inc()
}

// RecordCron records a scheduled job run.
func RecordCron(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CronRuns.WithLabelValues(job, status).Inc()
}
