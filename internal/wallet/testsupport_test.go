package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cowriepay/cowrie/internal/config"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/logging"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
)

type fakeNGNRail struct {
	mu           sync.Mutex
	transferErr  error
	transferRef  string
	transfers    []provider.TransferRequest
	balanceMinor int64
	resolveErr   error
	resolved     provider.ResolvedAccount
}

func (f *fakeNGNRail) Transfer(_ context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, req)
	if f.transferErr != nil {
		return provider.TransferResult{}, f.transferErr
	}
	ref := f.transferRef
	if ref == "" {
		ref = "prov-" + req.Reference
	}
	return provider.TransferResult{Reference: ref}, nil
}

func (f *fakeNGNRail) Balance(context.Context, string) (int64, error) {
	return f.balanceMinor, nil
}

func (f *fakeNGNRail) ResolveAccount(context.Context, string, string) (provider.ResolvedAccount, error) {
	if f.resolveErr != nil {
		return provider.ResolvedAccount{}, f.resolveErr
	}
	return f.resolved, nil
}

func (f *fakeNGNRail) Institutions(context.Context) ([]provider.Institution, error) {
	return nil, nil
}

func (f *fakeNGNRail) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

type fakeMCRail struct {
	fakeNGNRail
	subAccounts  []string
	fundedMinor  int64
	quote        provider.FXQuote
	exchangeRefs []string
}

func (f *fakeMCRail) ResolveAccount(ctx context.Context, acct, bank, _ string) (provider.ResolvedAccount, error) {
	return f.fakeNGNRail.ResolveAccount(ctx, acct, bank)
}

func (f *fakeMCRail) Institutions(context.Context, string) ([]provider.Institution, error) {
	return nil, nil
}

func (f *fakeMCRail) CreateSubAccount(_ context.Context, _, cur string) (string, error) {
	id := "sub-" + cur
	f.subAccounts = append(f.subAccounts, id)
	return id, nil
}

func (f *fakeMCRail) FundSubAccount(_ context.Context, _ string, amountMinor int64, _ string) error {
	f.fundedMinor += amountMinor
	return nil
}

func (f *fakeMCRail) WithdrawSubAccount(_ context.Context, _ string, amountMinor int64, _ string) error {
	f.fundedMinor -= amountMinor
	return nil
}

func (f *fakeMCRail) QuoteFX(context.Context, string, string, int64) (provider.FXQuote, error) {
	return f.quote, nil
}

func (f *fakeMCRail) ExecuteFX(_ context.Context, quoteRef string) (string, error) {
	f.exchangeRefs = append(f.exchangeRefs, quoteRef)
	return "fx-" + quoteRef, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

type queuedTask struct {
	kind    string
	payload any
}

func (q *fakeQueue) Enqueue(_ context.Context, kind string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{kind: kind, payload: payload})
	return nil
}

func (q *fakeQueue) countKind(kind string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, task := range q.tasks {
		if task.kind == kind {
			n++
		}
	}
	return n
}

func timeNowMonth() time.Month { return time.Now().UTC().Month() }
func timeNowYear() int         { return time.Now().UTC().Year() }

type testEnv struct {
	svc       *Service
	store     ledger.Store
	users     *user.Service
	ngn       *fakeNGNRail
	mc        *fakeMCRail
	queue     *fakeQueue
	sender    user.User
	recipient user.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := ledger.NewInMemory()
	users := user.NewService(user.NewMemoryRepository())
	ctx := context.Background()

	sender, err := users.Register(ctx, user.RegisterInput{
		Name:                 "Ada",
		PIN:                  "4321",
		NGNAccountNumber:     "2001111111",
		NGNTrackingReference: "track-ada",
	})
	require.NoError(t, err)

	recipient, err := users.Register(ctx, user.RegisterInput{
		Name:             "Bayo",
		PIN:              "9876",
		NGNAccountNumber: "2002222222",
	})
	require.NoError(t, err)

	ngn := &fakeNGNRail{}
	mc := &fakeMCRail{}
	queue := &fakeQueue{}

	svc := NewService(store, users, ngn, mc, queue, NewKeyedMutex(), Config{
		Limits: map[string]config.AmountLimits{
			"NGN": {MinMinor: 10_000, MaxMinor: 500_000_000},
			"USD": {MinMinor: 100, MaxMinor: 1_000_000},
		},
		TransferFeeMinor: 5_000,
		FeeAccountNumber: "3000000000",
		FeeBankCode:      "999",
	}, logging.Discard())

	return &testEnv{
		svc:       svc,
		store:     store,
		users:     users,
		ngn:       ngn,
		mc:        mc,
		queue:     queue,
		sender:    sender,
		recipient: recipient,
	}
}
