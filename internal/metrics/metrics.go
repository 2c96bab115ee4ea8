package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_queries_processed_total",
			Help: "DNS queries seen on the enforcement hot path",
		},
	)

	QueriesBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_queries_blocked_total",
			Help: "Queries rejected by the enforcement store",
		},
		[]string{"kind"}, // domain or addr
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_total",
			Help: "Threat alerts emitted by the classifier",
		},
		[]string{"level", "action"},
	)

	RotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_profile_rotations_total",
			Help: "Profile registry rotations performed by the analysis plane",
		},
	)

	ProfiledClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_profiled_clients",
			Help: "Clients scored in the most recent analysis cycle",
		},
	)

	TrainingCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_training_cycles_total",
			Help: "Training plane cycle outcomes",
		},
		[]string{"outcome"}, // trained, skipped, failed
	)

	PlaneFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_plane_failures_total",
			Help: "Unhandled faults contained by a processing plane",
		},
		[]string{"plane"},
	)

	BlocklistEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_blocklist_entries",
			Help: "Entries in the published enforcement snapshot",
		},
		[]string{"kind"},
	)
)
