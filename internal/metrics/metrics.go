package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TaskOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "task_outcomes_total",
			Help:      "Count of borrow/revoke task outcomes.",
		},
		[]string{"task", "outcome"},
	)

	DownloadEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "download_events_total",
			Help:      "Count of terminal download events.",
		},
		[]string{"type"},
	)

	DownloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "download_bytes_total",
			Help:      "Total content bytes downloaded.",
		},
	)

	DRMOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "drm_operations_total",
			Help:      "Count of DRM connector operations by result.",
		},
		[]string{"operation", "result"},
	)
)

// Register registers the Lectern metrics into the default registry.
func Register() {
	prometheus.MustRegister(TaskOutcomes, DownloadEvents, DownloadBytes, DRMOperations)
}
