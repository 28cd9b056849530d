// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_chat_turns_total",
			Help: "Chat turns by outcome (answered, rejected, failed)",
		},
		[]string{"outcome", "provider"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coach_stage_duration_seconds",
			Help:    "Duration of each chat pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	WebAugmentations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_web_augmentations_total",
			Help: "Web augmentation decisions and results",
		},
		[]string{"result"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_upstream_errors_total",
			Help: "Errors returned by external services",
		},
		[]string{"service"},
	)

	IngestedListings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_ingested_listings_total",
			Help: "Listings upserted by ingestion runs",
		},
		[]string{"kind"},
	)
)

// ObserveStage records the time since start under the given stage label.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
