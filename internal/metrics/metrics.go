package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumecrunch_evaluations_total",
			Help: "Evaluations finished, by outcome",
		},
		[]string{"outcome"},
	)

	EvaluationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumecrunch_evaluations_rejected_total",
			Help: "Evaluation requests rejected before processing, by reason",
		},
		[]string{"reason"},
	)

	ParseTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumecrunch_reply_parse_tier_total",
			Help: "Oracle replies by the parser tier that produced the scores",
		},
		[]string{"tier"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumecrunch_extractions_total",
			Help: "Text extraction attempts by backend and result",
		},
		[]string{"backend", "result"},
	)

	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumecrunch_oracle_calls_total",
			Help: "Scoring oracle calls by result",
		},
		[]string{"result"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resumecrunch_evaluation_duration_seconds",
			Help:    "Duration of one evaluation pipeline run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	EvaluationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resumecrunch_evaluations_active",
			Help: "Evaluations currently running",
		},
	)
)
