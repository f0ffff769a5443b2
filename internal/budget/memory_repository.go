package budget

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	budgets map[string]*Budget
	items   map[string][]*Item // keyed by budget ID
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		budgets: make(map[string]*Budget),
		items:   make(map[string][]*Item),
	}
}

func (r *MemoryRepository) CreateBudget(_ context.Context, b Budget, items []Item) (Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.CreatedAt = time.Now().UTC()
	stored := b
	r.budgets[b.ID] = &stored
	for _, item := range items {
		item.BudgetID = b.ID
		copied := item
		r.items[b.ID] = append(r.items[b.ID], &copied)
	}
	return b, nil
}

func (r *MemoryRepository) GetBudget(_ context.Context, id string) (Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.budgets[id]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return *b, nil
}

func (r *MemoryRepository) ListBudgets(_ context.Context, ownerID string) ([]Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Budget
	for _, b := range r.budgets {
		if b.OwnerID == ownerID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) GetItem(_ context.Context, budgetID, itemID string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items[budgetID] {
		if item.ID == itemID {
			return *item, nil
		}
	}
	return Item{}, ErrItemNotFound
}

func (r *MemoryRepository) ListItems(_ context.Context, budgetID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Item, 0, len(r.items[budgetID]))
	for _, item := range r.items[budgetID] {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) AddSpent(_ context.Context, budgetID, itemID string, deltaMinor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.budgets[budgetID]
	if !ok {
		return ErrNotFound
	}
	for _, item := range r.items[budgetID] {
		if item.ID == itemID {
			b.SpentMinor += deltaMinor
			item.SpentMinor += deltaMinor
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) IncreaseTotal(_ context.Context, budgetID string, deltaMinor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.budgets[budgetID]
	if !ok {
		return ErrNotFound
	}
	b.TotalMinor += deltaMinor
	return nil
}
