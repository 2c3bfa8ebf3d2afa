package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type issuePassportRequest struct {
	Email string `json:"email" form:"email" query:"email" validate:"required,email,max=320"`
	AppID string `json:"app_id" form:"app_id" query:"app_id" validate:"required"`
}

type issuePassportResponse struct {
	Passport      string    `json:"passport"`
	SessionBudget int64     `json:"session_budget"`
	TotalBalance  int64     `json:"total_balance"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type redeemPassportRequest struct {
	Passport       string `json:"passport" validate:"required"`
	AppID          string `json:"app_id"`
	Cost           int64  `json:"cost" validate:"required,gt=0"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

type redeemPassportResponse struct {
	Approved        bool   `json:"approved"`
	NewPassport     string `json:"new_passport"`
	RemainingBudget int64  `json:"remaining_budget"`
	Balance         int64  `json:"balance"`
	Replayed        bool   `json:"replayed"`
}

func (s *Server) issuePassport(c echo.Context) error {
	var req issuePassportRequest
	// Older client apps pass email and app_id in the query string.
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed query")
	}
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issued, err := s.svc.Passports.Issue(c.Request().Context(), req.Email, req.AppID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, issuePassportResponse{
		Passport:      issued.Token,
		SessionBudget: issued.SessionBudget,
		TotalBalance:  issued.TotalBalance,
		ExpiresAt:     issued.Passport.ExpiresAt,
	})
}

func (s *Server) redeemPassport(c echo.Context) error {
	var req redeemPassportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	r, err := s.svc.Passports.Redeem(c.Request().Context(), req.Passport, req.AppID, req.Cost, req.Description, idempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, redeemPassportResponse{
		Approved:        r.Approved,
		NewPassport:     r.Token,
		RemainingBudget: r.RemainingBudget,
		Balance:         r.Balance,
		Replayed:        r.Replayed,
	})
}
