package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const retryAfterSeconds = 5

type errorResponse struct {
	Error string `json:"error"`
}

type insufficientResponse struct {
	Error     string `json:"error"`
	Scope     string `json:"scope"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
	Shortfall int64  `json:"shortfall"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.classify(err, c)
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error(c.Request().Context(), "writing error response", "error", err)
	}
}

func (s *Server) classify(err error, c echo.Context) (int, any) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, errorResponse{Error: msg}
	}

	var insufficient *common.InsufficientFundsError
	if errors.As(err, &insufficient) {
		msg := "Insufficient tokens"
		if insufficient.Scope == common.ScopePassport {
			msg = "Session budget exceeded"
		}
		return http.StatusPaymentRequired, insufficientResponse{
			Error:     msg,
			Scope:     insufficient.Scope,
			Required:  insufficient.Required,
			Available: insufficient.Available,
			Shortfall: insufficient.Shortfall(),
		}
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, errorResponse{Error: verrs.Error()}
	case errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: common.ErrInvalidToken.Error()}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, common.ErrIdempotencyConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, common.ErrTooManyRequests):
		return http.StatusTooManyRequests, errorResponse{Error: err.Error()}
	case errors.Is(err, common.ErrLedgerUnavailable):
		s.logger.Error(c.Request().Context(), "ledger unavailable", "path", c.Path(), "error", err)
		return http.StatusServiceUnavailable, errorResponse{Error: common.ErrLedgerUnavailable.Error()}
	}

	s.logger.Error(c.Request().Context(), "unhandled error", "path", c.Path(), "error", err)
	return http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()}
}
