package worker

import "github.com/prometheus/client_golang/prometheus"

var processedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_service_processed_total",
		Help: "Total webhook work items handled by the dispatcher, by outcome",
	},
	[]string{"event_type", "outcome"},
)

func init() {
	prometheus.MustRegister(processedCounter)
}

func recordOutcome(eventType, outcome string) {
	processedCounter.WithLabelValues(eventType, outcome).Inc()
}
