package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resolutions counts resolved mentions.
	// Labels: stage (alias, exact, fuzzy, semantic, none), status (resolved, ambiguous, not_found)
	resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfoliod",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of property mentions resolved by stage and status",
		},
		[]string{"stage", "status"},
	)

	// semanticErrors counts failures of the optional semantic stage.
	// Labels: phase (build, query)
	semanticErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfoliod",
			Subsystem: "resolver",
			Name:      "semantic_errors_total",
			Help:      "Total number of semantic index failures that fell back to lexical matching",
		},
		[]string{"phase"},
	)

	// aliasReloads counts alias file reloads.
	// Labels: result (success, error)
	aliasReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfoliod",
			Subsystem: "resolver",
			Name:      "alias_reloads_total",
			Help:      "Total number of alias file reloads",
		},
		[]string{"result"},
	)
)
