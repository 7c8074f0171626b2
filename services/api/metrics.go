package api

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"caravand/services/lifecycle"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caravand",
	Subsystem: "lifecycle",
	Name:      "transitions_total",
	Help:      "Lifecycle transition requests processed, by action and outcome.",
}, []string{"action", "outcome"})

func observeTransition(action string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, lifecycle.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, lifecycle.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, lifecycle.ErrValidation):
		outcome = "invalid_input"
	default:
		outcome = "error"
	}
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}
