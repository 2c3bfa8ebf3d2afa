// Package metrics exposes Prometheus collectors for the HTTP surface and the
// ledger, passport and magic-link flows.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenbank"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	ledgerOperations    *prometheus.CounterVec
	ledgerTokens        *prometheus.CounterVec
	passportsIssued     prometheus.Counter
	passportRedemptions *prometheus.CounterVec
	magicLinks          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger deposits and spends by result.",
		}, []string{"op", "result"}),
		ledgerTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tokens_total",
			Help:      "Tokens moved by successful ledger operations.",
		}, []string{"op"}),
		passportsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passports_issued_total",
			Help:      "Spending passports minted.",
		}),
		passportRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passport_redemptions_total",
			Help:      "Passport redemptions by result.",
		}, []string{"result"}),
		magicLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "magic_links_total",
			Help:      "Magic-link lifecycle events.",
		}, []string{"event"}),
	}

	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ledgerOperations,
		m.ledgerTokens,
		m.passportsIssued,
		m.passportRedemptions,
		m.magicLinks,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) LedgerOperation(op, result string, tokens int64) {
	m.ledgerOperations.WithLabelValues(op, result).Inc()
	if result == "ok" && tokens > 0 {
		m.ledgerTokens.WithLabelValues(op).Add(float64(tokens))
	}
}

func (m *Metrics) PassportIssued() { m.passportsIssued.Inc() }

func (m *Metrics) PassportRedemption(result string) {
	m.passportRedemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) MagicLink(event string) { m.magicLinks.WithLabelValues(event).Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := strings.ToUpper(c.Request().Method)
			status := strconv.Itoa(c.Response().Status)

			m.httpRequests.WithLabelValues(method, path, status).Inc()
			m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
