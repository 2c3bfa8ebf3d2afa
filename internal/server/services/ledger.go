package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/models"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Ledger operation labels.
const (
	OpDeposit = "deposit"
	OpSpend   = "spend"
)

// LedgerResult is the outcome of a balance mutation.
type LedgerResult struct {
	Balance       int64
	TransactionID string
	// Replayed is true when an earlier request with the same idempotency
	// key already applied the mutation and nothing changed now.
	Replayed bool
}

// LedgerService owns every balance mutation. A mutation and its
// transaction row commit together or not at all.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	recorder    Recorder
	now         func() time.Time
}

// NewLedgerService wires a LedgerService. recorder may be nil.
func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, recorder Recorder) *LedgerService {
	return &LedgerService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "ledger"),
		recorder:    recorderOrNop(recorder),
		now:         time.Now,
	}
}

// Deposit credits tokens to email, creating the account when absent.
func (s *LedgerService) Deposit(ctx context.Context, email string, tokens int64, paymentReference, idempotencyKey string) (*LedgerResult, error) {
	if tokens <= 0 {
		return nil, common.ErrInvalidAmount
	}
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", common.ErrInvalidRequest)
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	req := mutation{email: email, key: idempotencyKey, amount: tokens, description: "Purchase via " + paymentReference}

	if r, err := s.replay(ctx, req); r != nil || err != nil {
		s.record(OpDeposit, r, err, tokens)
		return r, err
	}

	result := &LedgerResult{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		balance, seq, err := s.repomanager.Accounts(tx).Credit(ctx, email, tokens)
		if err != nil {
			return err
		}

		t := &models.Transaction{
			ID:             uuid.NewString(),
			Email:          email,
			Seq:            seq,
			Amount:         req.amount,
			Description:    req.description,
			BalanceAfter:   balance,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      s.now(),
		}
		if err := s.repomanager.Transactions(tx).Create(ctx, t); err != nil {
			return err
		}

		result.Balance = balance
		result.TransactionID = t.ID
		return nil
	})
	if err != nil {
		r, err := s.resolveFailure(ctx, req, err)
		s.record(OpDeposit, r, err, tokens)
		return r, err
	}

	s.logger.Info(ctx, "deposit applied", "tx_id", result.TransactionID, "tokens", tokens, "balance", result.Balance)
	s.record(OpDeposit, result, nil, tokens)
	return result, nil
}

// Spend debits tokens from email if and only if the balance covers them.
// A rejected spend returns *common.InsufficientFundsError and leaves no trace.
func (s *LedgerService) Spend(ctx context.Context, email string, tokens int64, appID, description, idempotencyKey string) (*LedgerResult, error) {
	if tokens <= 0 {
		return nil, common.ErrInvalidAmount
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, fmt.Errorf("%w: app id is required", common.ErrInvalidRequest)
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	req := mutation{email: email, key: idempotencyKey, amount: -tokens, description: appID + ": " + description}

	if r, err := s.replay(ctx, req); r != nil || err != nil {
		s.record(OpSpend, r, err, tokens)
		return r, err
	}

	result := &LedgerResult{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)

		balance, seq, ok, err := accounts.Debit(ctx, email, tokens)
		if err != nil {
			return err
		}
		if !ok {
			available, err := accounts.Balance(ctx, email)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return &common.InsufficientFundsError{Required: tokens, Available: available, Scope: common.ScopeLedger}
		}

		t := &models.Transaction{
			ID:             uuid.NewString(),
			Email:          email,
			Seq:            seq,
			Amount:         req.amount,
			Description:    req.description,
			BalanceAfter:   balance,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      s.now(),
		}
		if err := s.repomanager.Transactions(tx).Create(ctx, t); err != nil {
			return err
		}

		result.Balance = balance
		result.TransactionID = t.ID
		return nil
	})
	if err != nil {
		var insufficient *common.InsufficientFundsError
		if errors.As(err, &insufficient) {
			s.logger.Info(ctx, "spend rejected", "app_id", appID, "tokens", tokens, "available", insufficient.Available)
			s.record(OpSpend, nil, err, tokens)
			return nil, err
		}
		r, err := s.resolveFailure(ctx, req, err)
		s.record(OpSpend, r, err, tokens)
		return r, err
	}

	s.logger.Info(ctx, "spend applied", "tx_id", result.TransactionID, "app_id", appID, "tokens", tokens, "balance", result.Balance)
	s.record(OpSpend, result, nil, tokens)
	return result, nil
}

// GetBalance returns the balance of email, 0 for unknown accounts.
func (s *LedgerService) GetBalance(ctx context.Context, email string) (int64, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	balance, err := s.repomanager.Accounts(s.db).Balance(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, common.Unavailable(err)
	}
	return balance, nil
}

// History returns up to limit transactions of email, oldest first.
func (s *LedgerService) History(ctx context.Context, email string, limit int) ([]models.Transaction, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	txs, err := s.repomanager.Transactions(s.db).ListByEmail(ctx, email, limit)
	if err != nil {
		return nil, common.Unavailable(err)
	}
	return txs, nil
}

// mutation identifies a requested balance change for idempotent replay.
type mutation struct {
	email       string
	key         string
	amount      int64
	description string
}

// replay returns the stored outcome for an idempotency key that was already
// used. A key that recorded a different amount or description on this account
// fails with common.ErrIdempotencyConflict and changes nothing.
func (s *LedgerService) replay(ctx context.Context, req mutation) (*LedgerResult, error) {
	if req.key == "" {
		return nil, nil
	}
	t, err := s.repomanager.Transactions(s.db).FindByIdempotencyKey(ctx, req.email, req.key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, common.Unavailable(err)
	}
	if t.Amount != req.amount || t.Description != req.description {
		s.logger.Warn(ctx, "idempotency key reused for a different request", "tx_id", t.ID, "amount", req.amount)
		return nil, common.ErrIdempotencyConflict
	}
	s.logger.Info(ctx, "idempotent replay", "tx_id", t.ID)
	return &LedgerResult{Balance: t.BalanceAfter, TransactionID: t.ID, Replayed: true}, nil
}

// resolveFailure turns a failed mutation into either the result of a
// concurrent request that won the idempotency race or a retryable
// ErrLedgerUnavailable.
func (s *LedgerService) resolveFailure(ctx context.Context, req mutation, cause error) (*LedgerResult, error) {
	if req.key != "" {
		r, err := s.replay(ctx, req)
		if errors.Is(err, common.ErrIdempotencyConflict) {
			return nil, err
		}
		if err == nil && r != nil {
			return r, nil
		}
	}
	s.logger.Error(ctx, "ledger mutation failed", "error", cause)
	return nil, common.Unavailable(cause)
}

func (s *LedgerService) record(op string, r *LedgerResult, err error, tokens int64) {
	switch {
	case err == nil && r != nil && r.Replayed:
		s.recorder.LedgerOperation(op, ResultReplayed, 0)
	case err == nil:
		s.recorder.LedgerOperation(op, ResultOK, tokens)
	case errors.Is(err, common.ErrInsufficientFunds):
		s.recorder.LedgerOperation(op, ResultInsufficient, 0)
	default:
		s.recorder.LedgerOperation(op, ResultError, 0)
	}
}
