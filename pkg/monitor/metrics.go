package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MonitorsSaved tracks pending operations written to the store.
	MonitorsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odata_monitor_saved_total",
			Help: "Total number of pending async operations stored",
		},
	)

	// MonitorErrors tracks store operation errors.
	MonitorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odata_monitor_errors_total",
			Help: "Total number of monitor store operation errors",
		},
		[]string{"operation"}, // "save", "get", "delete", "list"
	)
)
