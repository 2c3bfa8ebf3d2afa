package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/labstack/echo/v4"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type depositRequest struct {
	Email          string `json:"email" form:"email" validate:"required,email,max=320"`
	Tokens         int64  `json:"tokens" form:"tokens" validate:"required,gt=0"`
	PaymentID      string `json:"payment_id" form:"payment_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" form:"idempotency_key"`
}

type depositResponse struct {
	Status        string `json:"status"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed"`
}

type spendRequest struct {
	Email          string `json:"email" form:"email" validate:"required,email,max=320"`
	AppID          string `json:"app_id" form:"app_id" validate:"required"`
	Tokens         int64  `json:"tokens" form:"tokens" validate:"required,gt=0"`
	Description    string `json:"description" form:"description"`
	IdempotencyKey string `json:"idempotency_key" form:"idempotency_key"`
}

type spendResponse struct {
	Status        string `json:"status"`
	Remaining     int64  `json:"remaining"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed"`
}

type balanceResponse struct {
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

type transactionView struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type transactionsResponse struct {
	Email        string            `json:"email"`
	Transactions []transactionView `json:"transactions"`
}

// bindAndValidate decodes the body into req and runs the struct validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return c.Validate(req)
}

// idempotencyKey prefers the header over the body field.
func idempotencyKey(c echo.Context, fromBody string) string {
	if k := strings.TrimSpace(c.Request().Header.Get(common.IdempotencyKeyHeaderName)); k != "" {
		return k
	}
	return strings.TrimSpace(fromBody)
}

func (s *Server) deposit(c echo.Context) error {
	var req depositRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := s.svc.Ledger.Deposit(c.Request().Context(), req.Email, req.Tokens, req.PaymentID, idempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, depositResponse{
		Status:        "deposited",
		NewBalance:    res.Balance,
		TransactionID: res.TransactionID,
		Replayed:      res.Replayed,
	})
}

func (s *Server) spend(c echo.Context) error {
	var req spendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := s.svc.Ledger.Spend(c.Request().Context(), req.Email, req.Tokens, req.AppID, req.Description, idempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, spendResponse{
		Status:        "spent",
		Remaining:     res.Balance,
		TransactionID: res.TransactionID,
		Replayed:      res.Replayed,
	})
}

func (s *Server) balance(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return common.ErrInvalidEmail
	}

	balance, err := s.svc.Ledger.GetBalance(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Email: strings.ToLower(strings.TrimSpace(email)), Balance: balance})
}

func (s *Server) transactions(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return common.ErrInvalidEmail
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}

	txs, err := s.svc.Ledger.History(c.Request().Context(), email, limit)
	if err != nil {
		return err
	}

	out := transactionsResponse{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Transactions: make([]transactionView, 0, len(txs)),
	}
	for _, t := range txs {
		out.Transactions = append(out.Transactions, transactionView{
			ID:           t.ID,
			Amount:       t.Amount,
			Description:  t.Description,
			BalanceAfter: t.BalanceAfter,
			CreatedAt:    t.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
