package probe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rkotelnikov/sitewatch/internal/domain"
)

const namespace = "sitewatch"

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "executions_total",
			Help:      "Total probes executed by check type and result",
		},
		[]string{"check_type", "result"},
	)

	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Probe round-trip time",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"check_type"},
	)
)

func recordProbe(checkType domain.CheckType, result domain.CheckResult, d time.Duration) {
	probesTotal.WithLabelValues(string(checkType), string(result)).Inc()
	probeDuration.WithLabelValues(string(checkType)).Observe(d.Seconds())
}
