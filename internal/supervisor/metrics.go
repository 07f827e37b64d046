package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfoliod",
		Subsystem: "supervisor",
		Name:      "requests_total",
		Help:      "Requests handled, by final intent and state.",
	}, []string{"intent", "state"})

	clarificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfoliod",
		Subsystem: "supervisor",
		Name:      "clarifications_total",
		Help:      "Clarification prompts issued, by cause.",
	}, []string{"reason"})

	classifierFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfoliod",
		Subsystem: "supervisor",
		Name:      "classifier_fallbacks_total",
		Help:      "Model classifications discarded in favor of rules, by reason.",
	}, []string{"reason"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portfoliod",
		Subsystem: "supervisor",
		Name:      "request_duration_seconds",
		Help:      "HandleRequest latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"intent"})
)
