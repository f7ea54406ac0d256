package vendors

import (
	"github.com/bissquit/oprisk/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oprisk",
			Subsystem: "vendors",
			Name:      "scores_total",
			Help:      "Total number of vendor risk scores computed",
		},
		[]string{"level"},
	)

	feedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oprisk",
			Subsystem: "vendors",
			Name:      "feed_requests_total",
			Help:      "Total number of feed lookups by result",
		},
		[]string{"result"},
	)
)

// Feed lookup results.
const (
	feedResultOK    = "ok"
	feedResultEmpty = "empty"
	feedResultError = "error"
)

func recordScore(level domain.RiskLevel) {
	scoresTotal.WithLabelValues(string(level)).Inc()
}

func recordFeedRequest(result string) {
	feedRequestsTotal.WithLabelValues(result).Inc()
}
