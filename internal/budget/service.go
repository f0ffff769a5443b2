package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
	"github.com/cowriepay/cowrie/internal/wallet"
)

// Service manages budget envelopes. Every mutation of a budget is serialized
// on a per (owner, budget) key so the two spend counters never race.
type Service struct {
	repo    Repository
	users   *user.Service
	wallets *wallet.Service
	mc      provider.MulticurrencyRail
	tasks   wallet.TaskQueue
	locks   *wallet.KeyedMutex
	logger  *slog.Logger
}

// NewService constructs the budget service.
func NewService(repo Repository, users *user.Service, wallets *wallet.Service,
	mc provider.MulticurrencyRail, tasks wallet.TaskQueue, locks *wallet.KeyedMutex,
	logger *slog.Logger) *Service {
	if locks == nil {
		locks = wallet.NewKeyedMutex()
	}
	return &Service{
		repo:    repo,
		users:   users,
		wallets: wallets,
		mc:      mc,
		tasks:   tasks,
		locks:   locks,
		logger:  logger,
	}
}

// CreateInput describes a new budget. Amounts are minor units.
type CreateInput struct {
	OwnerID    string
	Name       string
	Currency   string
	TotalMinor int64
	Items      []ItemInput
}

// ItemInput is one allocation inside a new budget.
type ItemInput struct {
	Name           string
	AllocatedMinor int64
}

// TopUpInput raises a budget's funded ceiling.
type TopUpInput struct {
	OwnerID     string
	BudgetID    string
	AmountMinor int64
}

// SpendInput moves money out of a budget item to another wallet owner.
type SpendInput struct {
	OwnerID                string
	BudgetID               string
	ItemID                 string
	PIN                    string
	AmountMinor            int64
	RecipientAccountNumber string
	Narration              string
}

// Create opens a provider sub-account for the budget and persists the
// envelope with its item allocations.
func (s *Service) Create(ctx context.Context, input CreateInput) (Budget, []Item, error) {
	cur, err := currency.Normalize(input.Currency)
	if err != nil {
		return Budget{}, nil, err
	}
	if input.TotalMinor <= 0 {
		return Budget{}, nil, fmt.Errorf("budget total must be positive")
	}

	var allocated int64
	items := make([]Item, 0, len(input.Items))
	for _, in := range input.Items {
		if in.AllocatedMinor <= 0 {
			return Budget{}, nil, fmt.Errorf("item allocation must be positive")
		}
		allocated += in.AllocatedMinor
		items = append(items, Item{
			ID:             uuid.NewString(),
			Name:           in.Name,
			AllocatedMinor: in.AllocatedMinor,
		})
	}
	if allocated > input.TotalMinor {
		return Budget{}, nil, ErrOverAllocated
	}

	owner, err := s.users.Get(ctx, input.OwnerID)
	if err != nil {
		return Budget{}, nil, err
	}
	subAccountID, err := s.mc.CreateSubAccount(ctx, owner.MulticurrencyCustomerID, cur)
	if err != nil {
		return Budget{}, nil, fmt.Errorf("create sub-account: %w", err)
	}

	b := Budget{
		ID:                   uuid.NewString(),
		OwnerID:              input.OwnerID,
		Name:                 input.Name,
		Currency:             cur,
		TotalMinor:           input.TotalMinor,
		ExternalSubAccountID: subAccountID,
	}

	// Fund before persisting, same order as TopUp: the ceiling must never
	// exceed what the sub-account actually holds.
	if err := s.mc.FundSubAccount(ctx, subAccountID, input.TotalMinor, "budget-open-"+b.ID); err != nil {
		return Budget{}, nil, fmt.Errorf("fund sub-account: %w", err)
	}
	created, err := s.repo.CreateBudget(ctx, b, items)
	if err != nil {
		// The sub-account already holds the money. Put it back asynchronously.
		s.queueRefund(ctx, b, input.TotalMinor)
		return Budget{}, nil, err
	}
	return created, items, nil
}

// TopUp credits the sub-account and then raises the ceiling, in that order:
// the ceiling must never exceed what the sub-account actually holds.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (Budget, error) {
	if input.AmountMinor <= 0 {
		return Budget{}, fmt.Errorf("top-up amount must be positive")
	}

	unlock := s.locks.Lock(lockKey(input.OwnerID, input.BudgetID))
	defer unlock()

	b, err := s.ownedBudget(ctx, input.OwnerID, input.BudgetID)
	if err != nil {
		return Budget{}, err
	}

	if err := s.mc.FundSubAccount(ctx, b.ExternalSubAccountID, input.AmountMinor, "budget-topup-"+uuid.NewString()); err != nil {
		return Budget{}, fmt.Errorf("fund sub-account: %w", err)
	}
	if err := s.repo.IncreaseTotal(ctx, b.ID, input.AmountMinor); err != nil {
		return Budget{}, err
	}
	return s.repo.GetBudget(ctx, b.ID)
}

// Spend checks both ceilings, debits the sub-account, advances the counters
// and hands the movement to the orchestrator. A failure after the provider
// debit rolls the counters back and queues a refund of the sub-account.
func (s *Service) Spend(ctx context.Context, input SpendInput) (wallet.MovementResult, error) {
	unlock := s.locks.Lock(lockKey(input.OwnerID, input.BudgetID))
	defer unlock()

	b, err := s.ownedBudget(ctx, input.OwnerID, input.BudgetID)
	if err != nil {
		return wallet.MovementResult{}, err
	}
	item, err := s.repo.GetItem(ctx, b.ID, input.ItemID)
	if err != nil {
		return wallet.MovementResult{}, err
	}

	if input.AmountMinor > b.RemainingMinor() {
		return wallet.MovementResult{}, ErrInsufficientBudgetFunds
	}
	if input.AmountMinor > item.RemainingMinor() {
		return wallet.MovementResult{}, ErrInsufficientItemFunds
	}

	spendRef := "budget-spend-" + uuid.NewString()
	if err := s.mc.WithdrawSubAccount(ctx, b.ExternalSubAccountID, input.AmountMinor, spendRef); err != nil {
		return wallet.MovementResult{}, fmt.Errorf("debit sub-account: %w", err)
	}
	if err := s.repo.AddSpent(ctx, b.ID, item.ID, input.AmountMinor); err != nil {
		s.queueRefund(ctx, b, input.AmountMinor)
		return wallet.MovementResult{}, err
	}

	res, err := s.wallets.Transfer(ctx, wallet.TransferInput{
		OwnerID:                input.OwnerID,
		PIN:                    input.PIN,
		Currency:               b.Currency,
		AmountMinor:            input.AmountMinor,
		RecipientAccountNumber: input.RecipientAccountNumber,
		Narration:              input.Narration,
		Budget:                 &wallet.BudgetRef{BudgetID: b.ID, BudgetItemID: item.ID},
	})
	if err != nil {
		// The sub-account was already debited. Undo the counters and put
		// the money back asynchronously.
		if rbErr := s.repo.AddSpent(ctx, b.ID, item.ID, -input.AmountMinor); rbErr != nil {
			s.logger.Error("budget counter rollback failed",
				slog.String("budget_id", b.ID),
				slog.Any("error", rbErr))
		}
		s.queueRefund(ctx, b, input.AmountMinor)
		return wallet.MovementResult{}, err
	}
	return res, nil
}

// Get returns one budget with its items, scoped to the owner.
func (s *Service) Get(ctx context.Context, ownerID, budgetID string) (Budget, []Item, error) {
	b, err := s.ownedBudget(ctx, ownerID, budgetID)
	if err != nil {
		return Budget{}, nil, err
	}
	items, err := s.repo.ListItems(ctx, b.ID)
	if err != nil {
		return Budget{}, nil, err
	}
	return b, items, nil
}

// List returns the owner's budgets.
func (s *Service) List(ctx context.Context, ownerID string) ([]Budget, error) {
	return s.repo.ListBudgets(ctx, ownerID)
}

func (s *Service) ownedBudget(ctx context.Context, ownerID, budgetID string) (Budget, error) {
	b, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return Budget{}, err
	}
	// Ownership failures look identical to absence.
	if b.OwnerID != ownerID {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func lockKey(ownerID, budgetID string) string {
	return ownerID + ":" + budgetID
}

// refundTask is the payload for outbox sub-account refunds. Reference is
// fixed at enqueue time so outbox retries replay the same provider movement.
type refundTask struct {
	BudgetID     string `json:"budget_id"`
	SubAccountID string `json:"sub_account_id"`
	AmountMinor  int64  `json:"amount_minor"`
	Reference    string `json:"reference"`
}

func (s *Service) queueRefund(ctx context.Context, b Budget, amountMinor int64) {
	task := refundTask{
		BudgetID:     b.ID,
		SubAccountID: b.ExternalSubAccountID,
		AmountMinor:  amountMinor,
		Reference:    "budget-refund-" + uuid.NewString(),
	}
	if err := s.tasks.Enqueue(ctx, outbox.KindBudgetRefund, task); err != nil {
		s.logger.Error("enqueue budget refund failed",
			slog.String("budget_id", b.ID),
			slog.Any("error", err))
	}
}

// HandleRefund is the outbox handler that re-credits a sub-account after a
// spend failed downstream of the provider debit.
func (s *Service) HandleRefund(ctx context.Context, task outbox.Task) error {
	var payload refundTask
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decode refund task: %w", err)
	}
	if err := s.mc.FundSubAccount(ctx, payload.SubAccountID, payload.AmountMinor, payload.Reference); err != nil {
		return fmt.Errorf("refund sub-account for budget %s: %w", payload.BudgetID, err)
	}
	return nil
}
