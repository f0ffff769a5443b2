package swap

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.Mutex
	quotes map[string]*Quote
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{quotes: make(map[string]*Quote)}
}

func (r *MemoryRepository) Save(_ context.Context, q Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q.CreatedAt = time.Now().UTC()
	stored := q
	r.quotes[q.Reference] = &stored
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, reference string) (Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quotes[reference]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return *q, nil
}

func (r *MemoryRepository) Consume(_ context.Context, reference string, now time.Time) (Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quotes[reference]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	if q.Expired(now) {
		return Quote{}, ErrQuoteExpired
	}
	if q.IsInitiated {
		return Quote{}, ErrQuoteAlreadyConsumed
	}
	q.IsInitiated = true
	return *q, nil
}
