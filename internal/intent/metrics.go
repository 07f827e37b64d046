package intent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// modelDecisions counts model-assisted classifications.
// Labels: provider, outcome (accepted, model_error, model_timeout, invalid_model_output)
var modelDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "portfoliod",
		Subsystem: "classifier",
		Name:      "model_decisions_total",
		Help:      "Total number of model-assisted classifications by outcome",
	},
	[]string{"provider", "outcome"},
)
