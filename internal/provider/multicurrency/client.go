// Package multicurrency implements the client for the multi-currency
// processor rail. All amounts cross this boundary in minor units.
package multicurrency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/cowriepay/cowrie/internal/provider"
)

// Client talks to the multi-currency processor's REST API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewClient constructs a multi-currency rail client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Transfer initiates an outbound payment on the processor.
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	body := map[string]any{
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"amount":         req.AmountMinor,
		"currency":       req.Currency,
		"reference":      req.Reference,
		"meta": map[string]string{
			"scheme":       "DOM",
			"counterparty": req.Counterparty,
		},
	}
	var out struct {
		Reference string `json:"reference"`
	}
	if err := c.do(ctx, http.MethodPost, "/transfers", body, &out); err != nil {
		return provider.TransferResult{}, err
	}
	ref := out.Reference
	if ref == "" {
		ref = req.Reference
	}
	return provider.TransferResult{Reference: ref}, nil
}

// ResolveAccount verifies a beneficiary account on the processor.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode, currency string) (provider.ResolvedAccount, error) {
	body := map[string]string{
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       currency,
	}
	var out struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}
	if err := c.do(ctx, http.MethodPost, "/institutions/resolve", body, &out); err != nil {
		return provider.ResolvedAccount{}, err
	}
	return provider.ResolvedAccount{
		AccountNumber: out.AccountNumber,
		AccountName:   out.AccountName,
		BankCode:      bankCode,
	}, nil
}

// Institutions lists destination banks for the given currency.
func (c *Client) Institutions(ctx context.Context, cur string) ([]provider.Institution, error) {
	var out []struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	path := "/institutions?currency=" + url.QueryEscape(cur)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	institutions := make([]provider.Institution, 0, len(out))
	for _, i := range out {
		institutions = append(institutions, provider.Institution{Name: i.Name, Code: i.Code})
	}
	return institutions, nil
}

// CreateSubAccount opens a savings sub-account for a customer, returning the
// provider-side identifier budgets are keyed on.
func (c *Client) CreateSubAccount(ctx context.Context, customerID, cur string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"currency": cur}
	path := fmt.Sprintf("/customers/%s/sub-accounts", url.PathEscape(customerID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// FundSubAccount moves funds from the main float into a sub-account.
func (c *Client) FundSubAccount(ctx context.Context, subAccountID string, amountMinor int64, reference string) error {
	body := map[string]any{"amount": amountMinor, "reference": reference}
	path := fmt.Sprintf("/sub-accounts/%s/fund", url.PathEscape(subAccountID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// WithdrawSubAccount moves funds out of a sub-account back to the main float.
func (c *Client) WithdrawSubAccount(ctx context.Context, subAccountID string, amountMinor int64, reference string) error {
	body := map[string]any{"amount": amountMinor, "reference": reference}
	path := fmt.Sprintf("/sub-accounts/%s/withdraw", url.PathEscape(subAccountID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// QuoteFX requests an exchange quote between two currencies.
func (c *Client) QuoteFX(ctx context.Context, sourceCurrency, targetCurrency string, sourceAmountMinor int64) (provider.FXQuote, error) {
	body := map[string]any{
		"source_currency": sourceCurrency,
		"target_currency": targetCurrency,
		"amount":          sourceAmountMinor,
	}
	var out struct {
		Reference    string          `json:"reference"`
		Rate         decimal.Decimal `json:"rate"`
		SourceAmount int64           `json:"source_amount"`
		TargetAmount int64           `json:"target_amount"`
	}
	if err := c.do(ctx, http.MethodPost, "/fx/quote", body, &out); err != nil {
		return provider.FXQuote{}, err
	}
	return provider.FXQuote{
		Reference:         out.Reference,
		Rate:              out.Rate,
		SourceAmountMinor: out.SourceAmount,
		TargetAmountMinor: out.TargetAmount,
	}, nil
}

// ExecuteFX executes a previously obtained quote and returns the exchange
// transaction reference.
func (c *Client) ExecuteFX(ctx context.Context, quoteReference string) (string, error) {
	body := map[string]string{"quote_reference": quoteReference}
	var out struct {
		Reference string `json:"reference"`
	}
	if err := c.do(ctx, http.MethodPost, "/fx/exchange", body, &out); err != nil {
		return "", err
	}
	if out.Reference == "" {
		out.Reference = quoteReference
	}
	return out.Reference, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.NewTransportError(err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return provider.NewTransportError(fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode))
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return provider.NewTransportError(fmt.Errorf("decode %s %s: %w", method, path, err))
	}

	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		kind := provider.KindBusiness
		if resp.StatusCode == http.StatusPaymentRequired {
			kind = provider.KindInsufficientFunds
		}
		c.logger.Warn("multicurrency rail rejected request",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", envelope.Message))
		return provider.NewBusinessError(kind, fmt.Sprintf("%d", resp.StatusCode), envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}
