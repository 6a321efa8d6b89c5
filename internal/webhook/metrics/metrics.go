package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for webhook delivery.
type Metrics struct {
	deliveriesTotal *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	droppedEvents   prometheus.Counter
	queueDepth      prometheus.Gauge
	deliveryLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		deliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_webhook_deliveries_total",
			Help: "Total webhook delivery attempts by outcome",
		}, []string{"outcome"}),
		retriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_webhook_retries_total",
			Help: "Total webhook delivery retries",
		}),
		droppedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_webhook_events_dropped_total",
			Help: "Total events dropped because the queue was full",
		}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentd_webhook_queue_depth",
			Help: "Events currently buffered for dispatch",
		}),
		deliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentd_webhook_delivery_duration_seconds",
			Help:    "Webhook endpoint response time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementDeliveries(outcome string) {
	m.deliveriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRetries() {
	m.retriesTotal.Inc()
}

func (m *Metrics) IncrementDroppedEvents() {
	m.droppedEvents.Inc()
}

func (m *Metrics) SetQueueDepth(depth float64) {
	m.queueDepth.Set(depth)
}

func (m *Metrics) ObserveDeliveryLatency(durationSeconds float64) {
	m.deliveryLatency.Observe(durationSeconds)
}
