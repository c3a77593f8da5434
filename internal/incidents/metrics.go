package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rkotelnikov/sitewatch/internal/domain"
)

var incidentsCreated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sitewatch",
		Subsystem: "incidents",
		Name:      "created_total",
		Help:      "Incidents created by severity and source path",
	},
	[]string{"severity", "source"},
)

func recordIncidentCreated(severity domain.Severity, source string) {
	incidentsCreated.WithLabelValues(string(severity), source).Inc()
}
