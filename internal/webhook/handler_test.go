package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/logging"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
	"github.com/cowriepay/cowrie/internal/wallet"
)

type fakeQueue struct {
	mu       sync.Mutex
	failures int
	tasks    []string
}

func (q *fakeQueue) Enqueue(_ context.Context, kind string, _ any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return assert.AnError
	}
	q.tasks = append(q.tasks, kind)
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type stubNGNRail struct{}

func (stubNGNRail) Transfer(context.Context, provider.TransferRequest) (provider.TransferResult, error) {
	return provider.TransferResult{}, nil
}
func (stubNGNRail) Balance(context.Context, string) (int64, error) { return 0, nil }
func (stubNGNRail) ResolveAccount(context.Context, string, string) (provider.ResolvedAccount, error) {
	return provider.ResolvedAccount{}, nil
}
func (stubNGNRail) Institutions(context.Context) ([]provider.Institution, error) { return nil, nil }

type stubMCRail struct{ stubNGNRail }

func (stubMCRail) ResolveAccount(context.Context, string, string, string) (provider.ResolvedAccount, error) {
	return provider.ResolvedAccount{}, nil
}
func (stubMCRail) Institutions(context.Context, string) ([]provider.Institution, error) {
	return nil, nil
}
func (stubMCRail) CreateSubAccount(context.Context, string, string) (string, error) { return "", nil }
func (stubMCRail) FundSubAccount(context.Context, string, int64, string) error      { return nil }
func (stubMCRail) WithdrawSubAccount(context.Context, string, int64, string) error  { return nil }
func (stubMCRail) QuoteFX(context.Context, string, string, int64) (provider.FXQuote, error) {
	return provider.FXQuote{}, nil
}
func (stubMCRail) ExecuteFX(context.Context, string) (string, error) { return "", nil }

func newWalletService(t *testing.T) *wallet.Service {
	t.Helper()
	return wallet.NewService(ledger.NewInMemory(), user.NewService(user.NewMemoryRepository()),
		stubNGNRail{}, stubMCRail{}, &fakeQueue{}, wallet.NewKeyedMutex(),
		wallet.Config{}, logging.Discard())
}

func newTestApp(t *testing.T) (*fiber.App, *fakeQueue, *Verifier) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	verifier, err := NewVerifier("whsec_" + base64.StdEncoding.EncodeToString([]byte("topsecret")))
	require.NoError(t, err)

	queue := &fakeQueue{}
	h := NewHandler(verifier, NewDedupe(client), queue, logging.Discard())

	app := fiber.New()
	app.Post("/webhooks/ngn", h.NGN)
	app.Post("/webhooks/multicurrency", h.Multicurrency)
	return app, queue, verifier
}

func TestNGNWebhookQueuesReconcile(t *testing.T) {
	app, queue, _ := newTestApp(t)

	body := []byte(`{
		"transactionType": "Debit",
		"amount": 50000,
		"transactionReference": "ref-1",
		"accountNumber": "2001111111",
		"narrations": "rent"
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/ngn", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, queue.count())

	// Redelivery is absorbed by the dedupe set.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/ngn", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, queue.count())
}

// An enqueue failure must not burn the event id: the provider retries on the
// 500 and the redelivery has to reach the queue once it is back.
func TestNGNWebhookRetriesAfterQueueOutage(t *testing.T) {
	app, queue, _ := newTestApp(t)
	queue.failures = 1

	body := []byte(`{
		"transactionType": "Credit",
		"amount": 25000,
		"transactionReference": "ref-9",
		"accountNumber": "2001111111"
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/ngn", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Zero(t, queue.count())

	req = httptest.NewRequest(http.MethodPost, "/webhooks/ngn", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, queue.count())
}

func TestMulticurrencyWebhookVerifiesSignature(t *testing.T) {
	app, queue, verifier := newTestApp(t)

	body := []byte(`{
		"event": "transfer.successful",
		"data": {"reference": "ref-2", "type": "DEBIT", "amount": 1000, "currency": "USD"}
	}`)
	ts := fmt.Sprint(time.Now().Unix())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/multicurrency", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", "msg_10")
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", verifier.Sign("msg_10", ts, body))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, queue.count())
}

// A forged delivery gets a 200 and changes nothing.
func TestMulticurrencyWebhookRejectsBadSignature(t *testing.T) {
	app, queue, _ := newTestApp(t)

	body := []byte(`{"event": "transfer.successful", "data": {"reference": "ref-3"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/multicurrency", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", "msg_11")
	req.Header.Set("svix-timestamp", fmt.Sprint(time.Now().Unix()))
	req.Header.Set("svix-signature", "v1,Zm9yZ2Vk")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, queue.count())
}

func TestProcessorDropsUnknownReference(t *testing.T) {
	wallets := newWalletService(t)
	p := NewProcessor(wallets, logging.Discard())

	task := outbox.Task{
		Kind:    outbox.KindReconcileEvent,
		Payload: []byte(`{"Reference": "never-initiated", "Direction": "debit"}`),
	}
	// Unknown references are dropped so the outbox does not retry forever.
	assert.NoError(t, p.HandleReconcileEvent(context.Background(), task))
}

func TestProcessorMalformedPayload(t *testing.T) {
	p := NewProcessor(newWalletService(t), logging.Discard())

	err := p.HandleReconcileEvent(context.Background(), outbox.Task{
		Kind:    outbox.KindReconcileEvent,
		Payload: []byte(`{`),
	})
	assert.Error(t, err)
}
