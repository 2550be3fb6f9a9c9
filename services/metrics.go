package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationFixesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_fixes_total",
			Help: "Total number of location fixes by ingest result",
		},
		[]string{"result"},
	)

	sessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "time_sessions_opened_total",
			Help: "Total number of opened time sessions",
		},
	)

	sessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "time_sessions_closed_total",
			Help: "Total number of closed time sessions",
		},
		[]string{"reason"},
	)

	sessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "time_session_duration_seconds",
			Help:    "Duration of closed time sessions in seconds",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		},
	)

	invariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "time_session_invariant_violations_total",
			Help: "Total number of pairs found with more than one active session",
		},
	)

	reaperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_reaper_runs_total",
			Help: "Total number of reaper passes",
		},
		[]string{"status"},
	)

	proximityQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proximity_queue_length",
			Help: "Length of the proximity check queue",
		},
	)

	proximityTasksSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_tasks_superseded_total",
			Help: "Total number of queued proximity checks skipped because a newer position arrived",
		},
	)

	sessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_published_total",
			Help: "Total number of published session events",
		},
		[]string{"publisher", "status"},
	)
)
