package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore persists wallet transactions in PostgreSQL. The unique
// constraint on external_reference enforces idempotent appends and the
// conditional UPDATE in Transition enforces the terminal-state guard without
// a read-then-write race.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const txColumns = `id, type, operation, currency, amount_minor, status,
	originator_account, recipient_account, external_reference,
	processing_fee_minor, comment, is_budget, budget_id, budget_item_id, created_at`

// Append inserts a new transaction record.
func (s *PostgresStore) Append(ctx context.Context, tx Transaction) (string, error) {
	if err := validate(tx); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `INSERT INTO wallet_transactions (`+txColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tx.ID, tx.Type, tx.Operation, tx.Currency, tx.AmountMinor, tx.Status,
		nullable(tx.OriginatorAccount), nullable(tx.RecipientAccount), tx.ExternalReference,
		tx.ProcessingFeeMinor, tx.Comment, tx.IsBudget,
		nullable(tx.BudgetID), nullable(tx.BudgetItemID), tx.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicateReference
		}
		return "", fmt.Errorf("append transaction: %w", err)
	}
	return tx.ID, nil
}

// FindByReference fetches the transaction correlated to an external reference.
func (s *PostgresStore) FindByReference(ctx context.Context, ref string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+`
		FROM wallet_transactions WHERE external_reference = $1`, ref)
	return scanTransaction(row)
}

// Balance sums success-state movements for the account and currency.
func (s *PostgresStore) Balance(ctx context.Context, account, currency string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(CASE
			WHEN recipient_account = $1 THEN amount_minor
			WHEN originator_account = $1 THEN -amount_minor
			ELSE 0 END), 0)
		FROM wallet_transactions
		WHERE currency = $2 AND status = 'success'
		  AND (recipient_account = $1 OR originator_account = $1)`
	var balance int64
	if err := s.db.QueryRow(ctx, query, account, currency).Scan(&balance); err != nil {
		return 0, fmt.Errorf("aggregate balance: %w", err)
	}
	return balance, nil
}

// AvailableBalance additionally counts pending debits against the account.
func (s *PostgresStore) AvailableBalance(ctx context.Context, account, currency string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(CASE
			WHEN recipient_account = $1 AND status = 'success' THEN amount_minor
			WHEN originator_account = $1 AND status IN ('success', 'pending') THEN -amount_minor
			ELSE 0 END), 0)
		FROM wallet_transactions
		WHERE currency = $2
		  AND (recipient_account = $1 OR originator_account = $1)`
	var balance int64
	if err := s.db.QueryRow(ctx, query, account, currency).Scan(&balance); err != nil {
		return 0, fmt.Errorf("aggregate available balance: %w", err)
	}
	return balance, nil
}

// ListByPeriod returns the account's transactions for a calendar month.
func (s *PostgresStore) ListByPeriod(ctx context.Context, account string, month time.Month, year int) ([]Transaction, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rows, err := s.db.Query(ctx, `SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE (recipient_account = $1 OR originator_account = $1)
		  AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`, account, start, end)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Transition moves a pending transaction into a terminal state. The WHERE
// clause guarantees exactly-once semantics under concurrent redelivery.
func (s *PostgresStore) Transition(ctx context.Context, ref string, to Status) (Transaction, error) {
	if !to.Terminal() {
		return Transaction{}, fmt.Errorf("invalid transition target %q", to)
	}

	row := s.db.QueryRow(ctx, `UPDATE wallet_transactions SET status = $2
		WHERE external_reference = $1 AND status = 'pending'
		RETURNING `+txColumns, ref, to)
	tx, err := scanTransaction(row)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	// No pending row matched: either unknown or already terminal.
	existing, findErr := s.FindByReference(ctx, ref)
	if findErr != nil {
		return Transaction{}, findErr
	}
	return existing, ErrAlreadyFinal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var originator, recipient, budgetID, budgetItemID *string
	var createdAt time.Time
	err := row.Scan(&tx.ID, &tx.Type, &tx.Operation, &tx.Currency, &tx.AmountMinor, &tx.Status,
		&originator, &recipient, &tx.ExternalReference,
		&tx.ProcessingFeeMinor, &tx.Comment, &tx.IsBudget, &budgetID, &budgetItemID, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.OriginatorAccount = deref(originator)
	tx.RecipientAccount = deref(recipient)
	tx.BudgetID = deref(budgetID)
	tx.BudgetItemID = deref(budgetItemID)
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
