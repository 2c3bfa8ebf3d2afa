package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	m := New()

	m.LedgerOperation("spend", "ok", 5)
	m.LedgerOperation("spend", "ok", 3)
	m.LedgerOperation("spend", "insufficient", 100)
	m.LedgerOperation("deposit", "replayed", 50)
	m.PassportIssued()
	m.PassportRedemption("rejected")
	m.MagicLink("issued")
	m.MagicLink("issued")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerOperations.WithLabelValues("spend", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerOperations.WithLabelValues("spend", "insufficient")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.ledgerTokens.WithLabelValues("spend")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ledgerTokens), "only successful ops move tokens")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passportsIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passportRedemptions.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.magicLinks.WithLabelValues("issued")))
}

func TestMiddleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/balance", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for _, path := range []string{"/balance", "/balance", "/fail", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/balance", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/fail", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/boom", "500")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tokenbank_http_requests_total{method="GET",path="/balance",status="200"} 2`))
	assert.NotContains(t, body, `path="/metrics"`)
}
