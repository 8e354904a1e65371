package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrdersSubmitted  *prometheus.CounterVec
	OrdersSettled    *prometheus.CounterVec
	OrdersFailed     prometheus.Counter
	UnknownCallbacks prometheus.Counter
	PendingOrders    prometheus.Gauge
	FulfillSeconds   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spout_orders_submitted_total",
			Help: "Total number of orders submitted to the engine, by side",
		}, []string{"side"}),
		OrdersSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spout_orders_settled_total",
			Help: "Total number of orders settled by a price fulfillment, by side",
		}, []string{"side"}),
		OrdersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_orders_failed_total",
			Help: "Total number of orders abandoned after an oracle error",
		}),
		UnknownCallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_orders_unknown_callbacks_total",
			Help: "Total number of fulfillment callbacks with no matching pending order",
		}),
		PendingOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spout_orders_pending",
			Help: "Number of orders currently awaiting a price fulfillment",
		}),
		FulfillSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "spout_orders_fulfillment_duration_seconds",
			Help:    "Latency of processing a single fulfillment callback",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncrementOrdersSubmitted(side string) {
	if m != nil {
		m.OrdersSubmitted.WithLabelValues(side).Inc()
		m.PendingOrders.Inc()
	}
}

func (m *Metrics) IncrementOrdersSettled(side string) {
	if m != nil {
		m.OrdersSettled.WithLabelValues(side).Inc()
		m.PendingOrders.Dec()
	}
}

func (m *Metrics) IncrementOrdersFailed() {
	if m != nil {
		m.OrdersFailed.Inc()
		m.PendingOrders.Dec()
	}
}

func (m *Metrics) IncrementUnknownCallbacks() {
	if m != nil {
		m.UnknownCallbacks.Inc()
	}
}

func (m *Metrics) ObserveFulfillment(seconds float64) {
	if m != nil {
		m.FulfillSeconds.Observe(seconds)
	}
}
