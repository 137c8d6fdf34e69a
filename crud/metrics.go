package crud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"odinbook/errs"
)

var (
	friendRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "odinbook",
		Subsystem: "friends",
		Name:      "workflow_total",
		Help:      "Friend workflow operations by operation and outcome",
	}, []string{"operation", "outcome"})

	notificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "odinbook",
		Subsystem: "notifications",
		Name:      "handled_total",
		Help:      "Social events handled by the notification fan-out, by kind and outcome",
	}, []string{"kind", "outcome"})

	cascadeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "odinbook",
		Subsystem: "accounts",
		Name:      "cascade_sweep_seconds",
		Help:      "Duration of each account deletion sweep",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sweep", "outcome"})
)

// outcome turns an error into a metric label.
func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// resultLabel is like outcome, but keeps the reason of an application error.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if reason := errs.ErrorReason(err); reason != "" {
		return string(reason)
	}
	return "error"
}
