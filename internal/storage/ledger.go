package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
)

// CreateAccount inserts a new account. A non-zero starting balance is
// recorded as a grant transaction so the balance invariant holds from the
// first row.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, email, tokens_remaining) VALUES (?, ?, ?)
		`, account.ID, nullable(account.Email), account.TokensRemaining)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				return fmt.Errorf("account %s (%s): %w", account.ID, account.Email, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to insert account %s: %w", account.ID, err)
		}

		if account.TokensRemaining > 0 {
			if err := insertTransaction(ctx, tx, model.TokenTransaction{
				ID:          uuid.New().String(),
				AccountID:   account.ID,
				Kind:        model.KindGrant,
				Amount:      account.TokensRemaining,
				Description: "Initial balance",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var account model.Account
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, tokens_remaining, created_at FROM accounts WHERE id = ?
	`, id).Scan(&account.ID, &email, &account.TokensRemaining, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	account.Email = email.String

	return &account, nil
}

// DebitAccount atomically checks balance >= 1, decrements by 1, and appends
// a usage transaction of -1. The whole operation runs in a single serialized
// transaction so two concurrent debits against a balance of 1 cannot both
// succeed.
func (s *SQLiteStorage) DebitAccount(ctx context.Context, accountID, description, reportID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := balanceForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if balance < 1 {
			return fmt.Errorf("account %s has %d tokens: %w", accountID, balance, common.ErrInsufficientBalance)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET tokens_remaining = tokens_remaining - 1 WHERE id = ?
		`, accountID); err != nil {
			return fmt.Errorf("failed to decrement balance for %s: %w", accountID, err)
		}

		return insertTransaction(ctx, tx, model.TokenTransaction{
			ID:          uuid.New().String(),
			AccountID:   accountID,
			Kind:        model.KindUsage,
			Amount:      -1,
			ReportID:    reportID,
			Description: description,
		})
	})
}

// CreditAccount appends a positive transaction and increases the balance by
// amount. Used for purchases, grants, and the payment-provider boundary.
func (s *SQLiteStorage) CreditAccount(ctx context.Context, accountID string, amount int, kind model.TransactionKind, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive, got %d", ErrInvalidAmount, amount)
	}
	if err := validateKind(kind); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET tokens_remaining = tokens_remaining + ? WHERE id = ?
		`, amount, accountID)
		if err != nil {
			return fmt.Errorf("failed to credit account %s: %w", accountID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
		}

		return insertTransaction(ctx, tx, model.TokenTransaction{
			ID:          uuid.New().String(),
			AccountID:   accountID,
			Kind:        kind,
			Amount:      amount,
			Description: description,
		})
	})
}

// RefundReport marks the report refunded and writes the compensating +1
// transaction in the same unit of work: both effects occur together or
// neither does. Refunding an already-refunded report is a no-op.
func (s *SQLiteStorage) RefundReport(ctx context.Context, accountID, reportID, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	if err := validateString(reportID, "reportID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var refunded bool
		err := tx.QueryRowContext(ctx, `
			SELECT refunded FROM reports WHERE id = ?
		`, reportID).Scan(&refunded)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("report %s: %w", reportID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check refund state for %s: %w", reportID, err)
		}
		if refunded {
			// Idempotent: the compensating transaction was already written
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reports SET refunded = 1 WHERE id = ?
		`, reportID); err != nil {
			return fmt.Errorf("failed to mark report %s refunded: %w", reportID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET tokens_remaining = tokens_remaining + 1 WHERE id = ?
		`, accountID); err != nil {
			return fmt.Errorf("failed to credit refund to %s: %w", accountID, err)
		}

		return insertTransaction(ctx, tx, model.TokenTransaction{
			ID:          uuid.New().String(),
			AccountID:   accountID,
			Kind:        model.KindRefund,
			Amount:      1,
			ReportID:    reportID,
			Description: "Auto-refund: " + reason,
		})
	})
}

// GetTransactionsByAccount returns the account's transactions, oldest first.
func (s *SQLiteStorage) GetTransactionsByAccount(ctx context.Context, accountID string) ([]model.TokenTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, kind, amount, report_id, description, created_at
		FROM token_transactions
		WHERE account_id = ?
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for %s: %w", accountID, err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.TokenTransaction
	for rows.Next() {
		var txn model.TokenTransaction
		var reportID, description sql.NullString
		if err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Kind, &txn.Amount, &reportID, &description, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.ReportID = reportID.String
		txn.Description = description.String
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txns, nil
}

// balanceForUpdate reads the current balance inside tx, translating a
// missing row into common.ErrNotFound.
func balanceForUpdate(ctx context.Context, tx *sql.Tx, accountID string) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx, `
		SELECT tokens_remaining FROM accounts WHERE id = ?
	`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for %s: %w", accountID, err)
	}
	return balance, nil
}

// insertTransaction appends one immutable ledger row inside tx.
func insertTransaction(ctx context.Context, tx *sql.Tx, txn model.TokenTransaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (id, account_id, kind, amount, report_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.AccountID, string(txn.Kind), txn.Amount, nullable(txn.ReportID), nullable(txn.Description), txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s transaction for %s: %w", txn.Kind, txn.AccountID, err)
	}
	return nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
