package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Account lifecycle
	AccountOpsTotal      *prometheus.CounterVec
	PartialRegistrations *prometheus.CounterVec
	TokensIssued         prometheus.Counter
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profilehub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "profilehub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "profilehub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "profilehub",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profilehub",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		AccountOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profilehub",
				Subsystem: "account",
				Name:      "operations_total",
				Help:      "Account operations by name and outcome.",
			},
			[]string{"op", "outcome"}, // outcome=ok|invalid|not_found|partial|error
		),
		PartialRegistrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profilehub",
				Subsystem: "account",
				Name:      "partial_registrations_total",
				Help:      "Registrations that stopped after the identity was created, by last completed step.",
			},
			[]string{"state"},
		),
		TokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "profilehub",
				Subsystem: "auth",
				Name:      "tokens_issued_total",
				Help:      "Bearer tokens issued.",
			},
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.AccountOpsTotal, p.PartialRegistrations, p.TokensIssued)

	return p
}

func (p *Prom) ObserveAccount(op, outcome string) {
	p.AccountOpsTotal.WithLabelValues(op, outcome).Inc()
}

// ObservePartialRegistration counts accounts left without a role or session.
// Each one needs manual reconciliation.
func (p *Prom) ObservePartialRegistration(state string) {
	p.PartialRegistrations.WithLabelValues(state).Inc()
}

func (p *Prom) ObserveTokenIssued() {
	p.TokensIssued.Inc()
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
