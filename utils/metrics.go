package utils

import (
	"context"
	"strconv"

	"cardpresent/services/payments"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts session transitions and attempt outcomes. It is a
// payments.Observer.
type PaymentMetrics struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	requests    *prometheus.CounterVec
}

// NewPaymentMetrics creates the collectors and registers them with reg.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpresent",
			Name:      "session_transitions_total",
			Help:      "Payment session state transitions.",
		}, []string{"kind", "from", "to"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpresent",
			Name:      "attempt_outcomes_total",
			Help:      "Finished attempts by final state and failure class.",
		}, []string{"kind", "state", "failure_class", "failure_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardpresent",
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of finished attempts.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"kind", "state"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpresent",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.transitions, m.outcomes, m.duration, m.requests)
	return m
}

func (m *PaymentMetrics) OnTransition(_ context.Context, ev payments.TransitionEvent) {
	if !ev.Final {
		m.transitions.WithLabelValues(ev.Kind, string(ev.From), string(ev.To)).Inc()
		return
	}
	m.outcomes.WithLabelValues(ev.Kind, string(ev.To), ev.FailureClass, ev.FailureCode).Inc()
	m.duration.WithLabelValues(ev.Kind, string(ev.To)).Observe(ev.Duration.Seconds())
}

// GinMiddleware counts requests by matched route.
func (m *PaymentMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
