package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "moves_total",
			Help:      "Applicant stage transitions, by target stage.",
		},
		[]string{"to_stage"},
	)

	aiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "AI operations, by operation, mode (live/mock) and outcome.",
		},
		[]string{"operation", "mode", "outcome"},
	)
)

// ObservePipelineMove counts one applicant moved into stage.
func ObservePipelineMove(stage string) {
	pipelineMoves.WithLabelValues(stage).Inc()
}

// ObserveAI counts one AI call.
func ObserveAI(operation string, mock bool, err error) {
	mode := "live"
	if mock {
		mode = "mock"
	}
	aiRequests.WithLabelValues(operation, mode, outcome(err)).Inc()
}
