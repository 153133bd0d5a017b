package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — счетчики жизненного цикла заказов и websocket-канала
type Metrics struct {
	OrdersCreated     prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	WSConnections     prometheus.Gauge
	WSEventsPublished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grocery",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grocery",
			Name:      "order_status_transitions_total",
			Help:      "Total number of order status transitions by target status.",
		}, []string{"status"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "grocery",
			Name:      "ws_connections",
			Help:      "Number of live websocket connections.",
		}),
		WSEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grocery",
			Name:      "ws_events_published_total",
			Help:      "Total number of realtime events published by event name.",
		}, []string{"event"}),
	}

	reg.MustRegister(m.OrdersCreated, m.StatusTransitions, m.WSConnections, m.WSEventsPublished)
	return m
}

// NewDefault регистрирует метрики в глобальном регистре prometheus
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
