package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records order, point, cache and HTTP activity. A nil *Metrics is a no-op.
type Metrics struct {
	requests        *prometheus.HistogramVec
	ordersCommitted *prometheus.CounterVec
	ordersClosed    *prometheus.CounterVec
	points          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowershop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ordersCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowershop_orders_committed_total",
			Help: "Orders committed, by branch and entry path.",
		}, []string{"branch", "entry_path"}),
		ordersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowershop_orders_closed_total",
			Help: "Orders that reached a final status.",
		}, []string{"branch", "status"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowershop_points_total",
			Help: "Loyalty points moved by committed orders.",
		}, []string{"direction"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowershop_calendar_cache_lookups_total",
			Help: "Calendar cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.ordersCommitted, m.ordersClosed, m.points, m.cacheLookups)
	return m
}

func (m *Metrics) ObserveRequest(method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

func (m *Metrics) OrderCommitted(branchID string, entryPath string, pointsUsed int64, pointsEarned int64) {
	if m == nil {
		return
	}
	m.ordersCommitted.WithLabelValues(normalizeLabel(branchID), normalizeLabel(entryPath)).Inc()
	if pointsUsed > 0 {
		m.points.WithLabelValues("redeemed").Add(float64(pointsUsed))
	}
	if pointsEarned > 0 {
		m.points.WithLabelValues("earned").Add(float64(pointsEarned))
	}
}

func (m *Metrics) OrderClosed(branchID string, status string) {
	if m == nil {
		return
	}
	m.ordersClosed.WithLabelValues(normalizeLabel(branchID), normalizeLabel(status)).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
