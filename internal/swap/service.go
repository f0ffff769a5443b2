package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/notification"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/wallet"
)

// Service prices and executes currency conversions.
type Service struct {
	repo     Repository
	store    ledger.Store
	mc       provider.MulticurrencyRail
	tasks    wallet.TaskQueue
	locks    *wallet.KeyedMutex
	quoteTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the swap service.
func NewService(repo Repository, store ledger.Store, mc provider.MulticurrencyRail,
	tasks wallet.TaskQueue, locks *wallet.KeyedMutex, quoteTTL time.Duration,
	logger *slog.Logger) *Service {
	if locks == nil {
		locks = wallet.NewKeyedMutex()
	}
	if quoteTTL <= 0 {
		quoteTTL = 2 * time.Minute
	}
	return &Service{
		repo:     repo,
		store:    store,
		mc:       mc,
		tasks:    tasks,
		locks:    locks,
		quoteTTL: quoteTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// QuoteInput requests a conversion price. Amount is source-currency minor units.
type QuoteInput struct {
	OwnerID        string
	SourceCurrency string
	TargetCurrency string
	AmountMinor    int64
}

// Quote fetches a rate from the rail and persists a time-boxed offer.
func (s *Service) Quote(ctx context.Context, input QuoteInput) (Quote, error) {
	source, err := currency.Normalize(input.SourceCurrency)
	if err != nil {
		return Quote{}, err
	}
	target, err := currency.Normalize(input.TargetCurrency)
	if err != nil {
		return Quote{}, err
	}
	if source == target {
		return Quote{}, ErrSameCurrency
	}
	if input.AmountMinor <= 0 {
		return Quote{}, ledger.ErrInvalidAmount
	}

	available, err := s.store.AvailableBalance(ctx, input.OwnerID, source)
	if err != nil {
		return Quote{}, err
	}
	if available < input.AmountMinor {
		return Quote{}, wallet.ErrInsufficientFunds
	}

	fx, err := s.mc.QuoteFX(ctx, source, target, input.AmountMinor)
	if err != nil {
		return Quote{}, fmt.Errorf("quote fx: %w", err)
	}

	q := Quote{
		Reference:         fx.Reference,
		OwnerID:           input.OwnerID,
		SourceCurrency:    source,
		SourceAmountMinor: fx.SourceAmountMinor,
		TargetCurrency:    target,
		TargetAmountMinor: fx.TargetAmountMinor,
		Rate:              fx.Rate,
		ExpiresAt:         s.now().Add(s.quoteTTL),
	}
	if err := s.repo.Save(ctx, q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// Execute consumes a quote exactly once and settles both legs in the ledger.
// The two records share the quote reference: "<ref>:src" debits the source
// currency, "<ref>:dst" credits the target.
func (s *Service) Execute(ctx context.Context, ownerID, reference string) (Quote, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	q, err := s.repo.Get(ctx, reference)
	if err != nil {
		return Quote{}, err
	}
	if q.OwnerID != ownerID {
		return Quote{}, ErrQuoteNotFound
	}

	available, err := s.store.AvailableBalance(ctx, ownerID, q.SourceCurrency)
	if err != nil {
		return Quote{}, err
	}
	if available < q.SourceAmountMinor {
		return Quote{}, wallet.ErrInsufficientFunds
	}

	q, err = s.repo.Consume(ctx, reference, s.now())
	if err != nil {
		return Quote{}, err
	}

	if _, err := s.mc.ExecuteFX(ctx, reference); err != nil {
		return Quote{}, fmt.Errorf("execute fx: %w", err)
	}

	if err := s.settle(ctx, q); err != nil {
		return Quote{}, err
	}

	if err := s.tasks.Enqueue(ctx, outbox.KindNotify, notification.Message{
		Kind:        notification.KindSwapCompleted,
		Destination: ownerID,
		Reference:   reference,
		Body: fmt.Sprintf("Swapped %d %s to %d %s",
			q.SourceAmountMinor, q.SourceCurrency, q.TargetAmountMinor, q.TargetCurrency),
	}); err != nil {
		s.logger.Error("enqueue swap notification failed",
			slog.String("reference", reference),
			slog.Any("error", err))
	}
	return q, nil
}

func (s *Service) settle(ctx context.Context, q Quote) error {
	_, err := s.store.Append(ctx, ledger.Transaction{
		Type:              ledger.TypeSwap,
		Operation:         ledger.OperationDebit,
		Currency:          q.SourceCurrency,
		AmountMinor:       q.SourceAmountMinor,
		Status:            ledger.StatusSuccess,
		OriginatorAccount: q.OwnerID,
		ExternalReference: q.Reference + ":src",
		Comment:           fmt.Sprintf("swap to %s", q.TargetCurrency),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateReference) {
		return err
	}

	_, err = s.store.Append(ctx, ledger.Transaction{
		Type:              ledger.TypeSwap,
		Operation:         ledger.OperationCredit,
		Currency:          q.TargetCurrency,
		AmountMinor:       q.TargetAmountMinor,
		Status:            ledger.StatusSuccess,
		RecipientAccount:  q.OwnerID,
		ExternalReference: q.Reference + ":dst",
		Comment:           fmt.Sprintf("swap from %s", q.SourceCurrency),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateReference) {
		return err
	}
	return nil
}
