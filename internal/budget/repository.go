package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists budgets and their items.
type Repository interface {
	CreateBudget(ctx context.Context, b Budget, items []Item) (Budget, error)
	GetBudget(ctx context.Context, id string) (Budget, error)
	ListBudgets(ctx context.Context, ownerID string) ([]Budget, error)
	GetItem(ctx context.Context, budgetID, itemID string) (Item, error)
	ListItems(ctx context.Context, budgetID string) ([]Item, error)
	// AddSpent moves both spend counters by delta in one atomic step.
	// Negative deltas roll a failed spend back.
	AddSpent(ctx context.Context, budgetID, itemID string, deltaMinor int64) error
	// IncreaseTotal raises the budget ceiling after a top-up.
	IncreaseTotal(ctx context.Context, budgetID string, deltaMinor int64) error
}

// PostgresRepository is the production Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateBudget(ctx context.Context, b Budget, items []Item) (Budget, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("begin create budget: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO budgets (id, owner_id, name, currency, total_minor, spent_minor, external_sub_account_id)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		RETURNING created_at`,
		b.ID, b.OwnerID, b.Name, b.Currency, b.TotalMinor, b.ExternalSubAccountID,
	)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return Budget{}, fmt.Errorf("insert budget: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO budget_items (id, budget_id, name, allocated_minor, spent_minor)
			VALUES ($1, $2, $3, $4, 0)`,
			item.ID, b.ID, item.Name, item.AllocatedMinor,
		)
		if err != nil {
			return Budget{}, fmt.Errorf("insert budget item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Budget{}, fmt.Errorf("commit create budget: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) GetBudget(ctx context.Context, id string) (Budget, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, currency, total_minor, spent_minor, external_sub_account_id, created_at
		FROM budgets WHERE id = $1`, id)
	return scanBudget(row)
}

func (r *PostgresRepository) ListBudgets(ctx context.Context, ownerID string) ([]Budget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, currency, total_minor, spent_minor, external_sub_account_id, created_at
		FROM budgets WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetItem(ctx context.Context, budgetID, itemID string) (Item, error) {
	var item Item
	row := r.pool.QueryRow(ctx, `
		SELECT id, budget_id, name, allocated_minor, spent_minor
		FROM budget_items WHERE budget_id = $1 AND id = $2`, budgetID, itemID)
	err := row.Scan(&item.ID, &item.BudgetID, &item.Name, &item.AllocatedMinor, &item.SpentMinor)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get budget item: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) ListItems(ctx context.Context, budgetID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, budget_id, name, allocated_minor, spent_minor
		FROM budget_items WHERE budget_id = $1 ORDER BY name`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.BudgetID, &item.Name, &item.AllocatedMinor, &item.SpentMinor); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AddSpent(ctx context.Context, budgetID, itemID string, deltaMinor int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add spent: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE budgets SET spent_minor = spent_minor + $2 WHERE id = $1`, budgetID, deltaMinor)
	if err != nil {
		return fmt.Errorf("update budget spent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tag, err = tx.Exec(ctx,
		`UPDATE budget_items SET spent_minor = spent_minor + $3 WHERE budget_id = $1 AND id = $2`,
		budgetID, itemID, deltaMinor)
	if err != nil {
		return fmt.Errorf("update item spent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) IncreaseTotal(ctx context.Context, budgetID string, deltaMinor int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE budgets SET total_minor = total_minor + $2 WHERE id = $1`, budgetID, deltaMinor)
	if err != nil {
		return fmt.Errorf("increase budget total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Currency, &b.TotalMinor,
		&b.SpentMinor, &b.ExternalSubAccountID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, ErrNotFound
	}
	if err != nil {
		return Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	return b, nil
}
