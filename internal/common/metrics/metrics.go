package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FieldUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_field_updates_total",
			Help: "Total number of answer writes, by step",
		},
		[]string{"step"},
	)

	StepSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_submissions_total",
			Help: "Total number of step submissions, by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	Autosaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_autosaves_total",
			Help: "Total number of autosave attempts, by outcome",
		},
		[]string{"outcome"},
	)

	ApplicationSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_application_submissions_total",
			Help: "Total number of final submissions, by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wizard_submission_total_score",
			Help:    "Total auto-score of submitted applications",
			Buckets: prometheus.LinearBuckets(0, 3, 6),
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_active_sessions",
			Help: "Number of drafts held in memory by the API",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of API requests in seconds",
		},
		[]string{"route", "method", "status"},
	)
)
