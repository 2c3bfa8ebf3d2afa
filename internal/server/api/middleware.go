package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/labstack/echo/v4"
)

// requireServiceToken guards the ledger and passport routes when a service
// token is configured.
func (s *Server) requireServiceToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		want := s.config.ServiceToken
		if want == "" {
			return next(c)
		}
		got := c.Request().Header.Get(common.ServiceTokenHeaderName)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid service token")
		}
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.Debug(req.Context(), "request",
			"method", req.Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}
