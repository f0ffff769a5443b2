package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists quotes. Consume is the one-shot guard: it succeeds for
// exactly one caller per quote.
type Repository interface {
	Save(ctx context.Context, q Quote) error
	Get(ctx context.Context, reference string) (Quote, error)
	// Consume marks the quote initiated if and only if it is not already.
	// Returns ErrQuoteAlreadyConsumed when another execution won the race.
	Consume(ctx context.Context, reference string, now time.Time) (Quote, error)
}

// PostgresRepository is the production Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const quoteColumns = `reference, owner_id, source_currency, source_amount_minor,
	target_currency, target_amount_minor, rate, is_initiated, expires_at, created_at`

func (r *PostgresRepository) Save(ctx context.Context, q Quote) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO swap_quotes
			(reference, owner_id, source_currency, source_amount_minor,
			 target_currency, target_amount_minor, rate, is_initiated, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		q.Reference, q.OwnerID, q.SourceCurrency, q.SourceAmountMinor,
		q.TargetCurrency, q.TargetAmountMinor, q.Rate, q.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save quote: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, reference string) (Quote, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM swap_quotes WHERE reference = $1`, reference)
	return scanQuote(row)
}

func (r *PostgresRepository) Consume(ctx context.Context, reference string, now time.Time) (Quote, error) {
	// Single conditional UPDATE: only one execution can flip the guard.
	row := r.pool.QueryRow(ctx, `
		UPDATE swap_quotes SET is_initiated = true
		WHERE reference = $1 AND is_initiated = false
		RETURNING `+quoteColumns, reference)
	q, err := scanQuote(row)
	if err == nil {
		if q.Expired(now) {
			return Quote{}, ErrQuoteExpired
		}
		return q, nil
	}
	if !errors.Is(err, ErrQuoteNotFound) {
		return Quote{}, err
	}

	// No row updated: either the quote never existed or it was consumed.
	existing, getErr := r.Get(ctx, reference)
	if getErr != nil {
		return Quote{}, getErr
	}
	if existing.Expired(now) {
		return Quote{}, ErrQuoteExpired
	}
	return Quote{}, ErrQuoteAlreadyConsumed
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.Reference, &q.OwnerID, &q.SourceCurrency, &q.SourceAmountMinor,
		&q.TargetCurrency, &q.TargetAmountMinor, &q.Rate, &q.IsInitiated,
		&q.ExpiresAt, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrQuoteNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("scan quote: %w", err)
	}
	return q, nil
}
