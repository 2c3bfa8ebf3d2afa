package api

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/server/services"
	"github.com/labstack/echo/v4"
)

type pricingResponse struct {
	Costs map[string]map[string]int64 `json:"costs"`
	Plans []services.Plan             `json:"plans"`
}

type priceResponse struct {
	AppID     string `json:"app_id"`
	Operation string `json:"operation"`
	Cost      int64  `json:"cost"`
}

type statementResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) health(c echo.Context) error {
	if s.svc.Health != nil {
		if err := s.svc.Health(c.Request().Context()); err != nil {
			return common.Unavailable(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// pricing returns the whole catalog, or a single cost when app_id and
// operation are given.
func (s *Server) pricing(c echo.Context) error {
	appID, op := c.QueryParam("app_id"), c.QueryParam("operation")
	if appID != "" || op != "" {
		cost, err := s.svc.Pricing.Price(appID, op)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, priceResponse{AppID: appID, Operation: op, Cost: cost})
	}
	return c.JSON(http.StatusOK, pricingResponse{Costs: s.svc.Pricing.Costs(), Plans: s.svc.Pricing.Plans()})
}

func (s *Server) statement(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return common.ErrInvalidEmail
	}
	exp, err := s.svc.Statements.Export(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statementResponse{Key: exp.Key, URL: exp.URL, ExpiresAt: exp.ExpiresAt})
}
