package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu    sync.RWMutex
	byRef map[string]*Transaction
	order []*Transaction
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{byRef: make(map[string]*Transaction)}
}

func (s *inMemoryStore) Append(_ context.Context, tx Transaction) (string, error) {
	if err := validate(tx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRef[tx.ExternalReference]; exists {
		return "", ErrDuplicateReference
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	stored := tx
	s.byRef[tx.ExternalReference] = &stored
	s.order = append(s.order, &stored)
	return stored.ID, nil
}

func (s *inMemoryStore) FindByReference(_ context.Context, ref string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byRef[ref]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *tx, nil
}

func (s *inMemoryStore) Balance(_ context.Context, account, currency string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	for _, tx := range s.order {
		if tx.Currency != currency || tx.Status != StatusSuccess {
			continue
		}
		if tx.RecipientAccount == account {
			balance += tx.AmountMinor
		}
		if tx.OriginatorAccount == account {
			balance -= tx.AmountMinor
		}
	}
	return balance, nil
}

func (s *inMemoryStore) AvailableBalance(_ context.Context, account, currency string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	for _, tx := range s.order {
		if tx.Currency != currency {
			continue
		}
		if tx.Status == StatusSuccess && tx.RecipientAccount == account {
			balance += tx.AmountMinor
		}
		if (tx.Status == StatusSuccess || tx.Status == StatusPending) && tx.OriginatorAccount == account {
			balance -= tx.AmountMinor
		}
	}
	return balance, nil
}

func (s *inMemoryStore) ListByPeriod(_ context.Context, account string, month time.Month, year int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, tx := range s.order {
		if tx.OriginatorAccount != account && tx.RecipientAccount != account {
			continue
		}
		if tx.CreatedAt.Month() != month || tx.CreatedAt.Year() != year {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (s *inMemoryStore) Transition(_ context.Context, ref string, to Status) (Transaction, error) {
	if !to.Terminal() {
		return Transaction{}, fmt.Errorf("invalid transition target %q", to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byRef[ref]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status.Terminal() {
		return *tx, ErrAlreadyFinal
	}

	tx.Status = to
	return *tx, nil
}
