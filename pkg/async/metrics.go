package async

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolutions tracks classified responses by outcome (final, pending, error).
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odata_async_resolutions_total",
			Help: "Total number of batch responses classified by outcome",
		},
		[]string{"outcome"},
	)

	// CleanupFailures tracks accepted-response bodies that failed to close.
	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odata_async_cleanup_failures_total",
			Help: "Total number of 202 response bodies that could not be released",
		},
	)
)
