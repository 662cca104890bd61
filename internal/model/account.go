// Package model defines the core domain types shared across the application.
package model

import "time"

// Account is a billable identity holding a prepaid token balance.
// The balance must always equal the sum of the account's token transactions.
type Account struct {
	CreatedAt       time.Time
	ID              string
	Email           string
	TokensRemaining int
}

// TransactionKind identifies why a token transaction was written.
type TransactionKind string

// Token transaction kinds.
const (
	KindPurchase TransactionKind = "purchase"
	KindUsage    TransactionKind = "usage"
	KindRefund   TransactionKind = "refund"
	KindGrant    TransactionKind = "grant"
)

// TokenTransaction is one immutable, append-only ledger record.
// Credits are positive, debits negative.
type TokenTransaction struct {
	CreatedAt   time.Time
	ID          string
	AccountID   string
	Kind        TransactionKind
	ReportID    string
	Description string
	Amount      int
}
