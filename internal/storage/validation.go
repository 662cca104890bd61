package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidKind    = errors.New("invalid transaction kind")
	ErrInvalidReport  = errors.New("invalid report")
	ErrInvalidAccount = errors.New("invalid account")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateKind ensures a transaction kind is one of the known values.
func validateKind(kind model.TransactionKind) error {
	switch kind {
	case model.KindPurchase, model.KindUsage, model.KindRefund, model.KindGrant:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

// validateAccount validates an account before insertion.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if account.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidAccount)
	}
	if account.TokensRemaining < 0 {
		return fmt.Errorf("%w: negative starting balance", ErrInvalidAccount)
	}
	return nil
}

// validateReport validates a report before insertion.
func validateReport(report *model.Report) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if report.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidReport)
	}
	if report.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidReport)
	}
	if report.Ticker == "" {
		return fmt.Errorf("%w: missing ticker", ErrInvalidReport)
	}
	return nil
}
