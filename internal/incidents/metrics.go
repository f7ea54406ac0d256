package incidents

import (
	"github.com/bissquit/oprisk/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oprisk"

var (
	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "escalations_total",
			Help:      "Total escalations recorded by type",
		},
		[]string{"type"},
	)

	slaBreachesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "sla_breaches_total",
			Help:      "SLA breaches detected by the sweeper that led to an escalation",
		},
		[]string{"kind"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent evaluating active incidents in one sweep",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

func recordEscalation(t domain.EscalationType) {
	escalationsTotal.WithLabelValues(string(t)).Inc()
}

func recordSLABreach(kind string) {
	slaBreachesTotal.WithLabelValues(kind).Inc()
}
