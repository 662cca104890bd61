// Package ledger implements the token ledger: a prepaid balance per account
// backed by an immutable, append-only transaction log. The balance is always
// the sum of the account's transactions; every mutation goes through a
// serialized check-and-update in storage, never a post-hoc correction.
package ledger

import (
	"context"
	"fmt"

	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

// Ledger exposes token balance operations over the storage layer.
type Ledger struct {
	storage service.Storage
}

// New creates a ledger service.
func New(storage service.Storage) *Ledger {
	return &Ledger{storage: storage}
}

// Debit atomically checks balance >= 1 and decrements by 1, recording a
// usage transaction. Returns common.ErrInsufficientBalance when the account
// cannot cover the charge; the caller must not proceed with paid work.
func (l *Ledger) Debit(ctx context.Context, accountID, description, reportID string) error {
	if err := l.storage.DebitAccount(ctx, accountID, description, reportID); err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}
	return nil
}

// Credit appends a positive transaction and increases the balance. Used for
// purchases (the payment-provider boundary) and grants.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int, kind model.TransactionKind, description string) error {
	if err := l.storage.CreditAccount(ctx, accountID, amount, kind, description); err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}
	return nil
}

// Refund writes a +1 refund transaction and marks the linked report
// refunded, atomically. Refunding an already-refunded report is a no-op.
func (l *Ledger) Refund(ctx context.Context, accountID, reportID, reason string) error {
	if err := l.storage.RefundReport(ctx, accountID, reportID, reason); err != nil {
		return fmt.Errorf("refund failed: %w", err)
	}
	return nil
}

// Balance returns the account's current token balance.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int, error) {
	account, err := l.storage.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.TokensRemaining, nil
}

// History returns the account's transactions, oldest first.
func (l *Ledger) History(ctx context.Context, accountID string) ([]model.TokenTransaction, error) {
	return l.storage.GetTransactionsByAccount(ctx, accountID)
}
