// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatches_total",
			Help: "Total dispatch attempts by resolution outcome",
		},
		[]string{"outcome"},
	)

	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_channel_sends_total",
			Help: "Channel send attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notify_dispatch_duration_seconds",
			Help:    "End-to-end dispatch duration (resolve + persist + sends)",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepStudentsMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_sweep_students_marked_total",
			Help: "Students marked Absent by the daily sweep",
		},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_sweep_runs_total",
			Help: "Absence sweep runs by result",
		},
		[]string{"result"},
	)
)
