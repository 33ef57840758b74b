package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string, reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Observe records one finished request.
func (m *ServerMetrics) Observe(handler string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

// ShopMetrics counts domain outcomes. A nil *ShopMetrics is valid and records nothing.
type ShopMetrics struct {
	OrdersPlaced     prometheus.Counter
	StockConflicts   *prometheus.CounterVec
	OrderTransitions *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	OutboxRelayed    *prometheus.CounterVec
}

func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	m := &ShopMetrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed at checkout.",
		}),
		StockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Cart or checkout operations rejected or clamped by stock.",
		}, []string{"kind"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transition attempts.",
		}, []string{"to", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts.",
		}, []string{"type", "result"}),
		OutboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relayed_total",
			Help:      "Outbox records handed to a publisher.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.OrdersPlaced, m.StockConflicts, m.OrderTransitions, m.Notifications, m.OutboxRelayed)
	return m
}

func (m *ShopMetrics) OrderPlaced() {
	if m != nil {
		m.OrdersPlaced.Inc()
	}
}

func (m *ShopMetrics) StockConflict(kind string) {
	if m != nil {
		m.StockConflicts.WithLabelValues(kind).Inc()
	}
}

func (m *ShopMetrics) Transition(to, result string) {
	if m != nil {
		m.OrderTransitions.WithLabelValues(to, result).Inc()
	}
}

func (m *ShopMetrics) Notification(eventType, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(eventType, result).Inc()
	}
}

func (m *ShopMetrics) Relayed(result string) {
	if m != nil {
		m.OutboxRelayed.WithLabelValues(result).Inc()
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
