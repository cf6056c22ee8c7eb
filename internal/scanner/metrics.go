package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture outcomes used as the "outcome" label.
const (
	OutcomeAccepted         = "accepted"
	OutcomeRejected         = "rejected"
	OutcomeBusy             = "busy"
	OutcomeGeometryError    = "geometry_error"
	OutcomeRecognitionError = "recognition_error"
	OutcomeInvalid          = "invalid"
)

var (
	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_captures_total",
			Help: "Total number of capture attempts by outcome",
		},
		[]string{"outcome"},
	)

	recognitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codescan_recognition_duration_seconds",
			Help:    "Time spent in the recognizer per capture",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	acceptedCodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codescan_accepted_codes",
			Help: "Number of codes in the accepted set",
		},
	)
)
