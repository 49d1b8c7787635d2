// Package metrics exposes prometheus instruments for the issuance and
// reconciliation pipeline.
package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/cobranca/internal/config"
	"go.uber.org/fx"
)

const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
)

const (
	WebhookAccepted     = "accepted"
	WebhookUnauthorized = "unauthorized"
	WebhookDropped      = "queue_full"
)

type Metrics struct {
	bankCalls         *prometheus.CounterVec
	boletosIssued     prometheus.Counter
	webhooksReceived  *prometheus.CounterVec
	reconcileRuns     prometheus.Counter
	reconcileErrors   prometheus.Counter
	reconcileDuration prometheus.Histogram
	reconcileClaimed  prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// FromConfig returns the process-wide metrics registry.
func FromConfig(cfg config.Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the singleton so each test gets a fresh registry.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg config.Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": cfg.AppName,
		"env":     environment,
	}

	m := &Metrics{
		bankCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_bank_calls_total",
			Help:        "Bank gateway calls by operation and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		boletosIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cobranca_boletos_issued_total",
			Help:        "Boletos registered at the bank.",
			ConstLabels: constLabels,
		}),
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_webhooks_received_total",
			Help:        "Inbound bank webhooks by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cobranca_reconcile_runs_total",
			Help:        "Reconciliation job runs.",
			ConstLabels: constLabels,
		}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cobranca_reconcile_errors_total",
			Help:        "Per-boleto failures during reconciliation.",
			ConstLabels: constLabels,
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "cobranca_reconcile_duration_seconds",
			Help:        "Reconciliation job latency.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}),
		reconcileClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cobranca_reconcile_boletos_claimed_total",
			Help:        "Boletos claimed for status refresh.",
			ConstLabels: constLabels,
		}),
	}

	for _, collector := range []prometheus.Collector{
		m.bankCalls,
		m.boletosIssued,
		m.webhooksReceived,
		m.reconcileRuns,
		m.reconcileErrors,
		m.reconcileDuration,
		m.reconcileClaimed,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

func (m *Metrics) BankCall(op, outcome string) {
	if m == nil {
		return
	}
	m.bankCalls.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) BoletoIssued() {
	if m == nil {
		return
	}
	m.boletosIssued.Inc()
}

func (m *Metrics) WebhookReceived(result string) {
	if m == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(result).Inc()
}

func (m *Metrics) ReconcileRun(claimed, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	m.reconcileClaimed.Add(float64(claimed))
	m.reconcileErrors.Add(float64(failed))
	m.reconcileDuration.Observe(elapsed.Seconds())
}

// HTTPMetrics instruments the gin engine.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	httpOnce    sync.Once
	httpMetrics *HTTPMetrics
)

func HTTPFromConfig(cfg config.Config) *HTTPMetrics {
	httpOnce.Do(func() {
		httpMetrics = newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return httpMetrics
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg config.Config) *HTTPMetrics {
	constLabels := prometheus.Labels{"service": cfg.AppName}
	h := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: constLabels,
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "cobranca_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"route", "method"}),
	}
	for _, collector := range []prometheus.Collector{h.requests, h.duration} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return h
}

func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		h.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

var Module = fx.Module("metrics",
	fx.Provide(FromConfig),
	fx.Provide(HTTPFromConfig),
)
