// Package ngn implements the client for the naira virtual-account rail.
package ngn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cowriepay/cowrie/internal/provider"
)

// Service types recognised by the rail's single-endpoint envelope API.
const (
	serviceSingleFundsTransfer = "SINGLE_FUND_TRANSFER"
	serviceAccountBalance      = "RETRIEVE_ACCOUNT_BALANCE"
	serviceNameEnquiry         = "NAME_ENQUIRY"
	serviceBankList            = "BANK_LIST"
)

// Client talks to the NGN virtual-account provider over its JSON envelope API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewClient constructs an NGN rail client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

type envelope struct {
	ServiceType string `json:"serviceType"`
	RequestRef  string `json:"requestRef"`
	Data        any    `json:"data"`
}

type response struct {
	Status       bool            `json:"status"`
	ResponseCode string          `json:"responseCode"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
}

type transferData struct {
	TrackingReference   string `json:"trackingReference"`
	Amount              int64  `json:"amount"`
	BeneficiaryAccount  string `json:"beneficiaryAccount"`
	BeneficiaryBankCode string `json:"beneficiaryBankCode"`
	Narration           string `json:"narration"`
	ClientFeeCharged    int64  `json:"clientFeeCharged,omitempty"`
}

// Transfer initiates a single funds transfer. The returned reference is the
// provider's transaction reference, which later webhook events carry.
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	payload := transferData{
		TrackingReference:   req.Reference,
		Amount:              req.AmountMinor,
		BeneficiaryAccount:  req.AccountNumber,
		BeneficiaryBankCode: req.BankCode,
		Narration:           req.Narration,
	}

	var out struct {
		TransactionReference string `json:"transactionReference"`
	}
	if err := c.call(ctx, serviceSingleFundsTransfer, req.Reference, payload, &out); err != nil {
		return provider.TransferResult{}, err
	}
	ref := out.TransactionReference
	if ref == "" {
		ref = req.Reference
	}
	return provider.TransferResult{Reference: ref}, nil
}

// Balance retrieves the live provider-side balance for a virtual account,
// in minor units.
func (c *Client) Balance(ctx context.Context, trackingReference string) (int64, error) {
	payload := map[string]string{"trackingReference": trackingReference}
	var out struct {
		AvailableBalance int64 `json:"availableBalance"`
	}
	if err := c.call(ctx, serviceAccountBalance, uuid.NewString(), payload, &out); err != nil {
		return 0, err
	}
	return out.AvailableBalance, nil
}

// ResolveAccount performs a name enquiry against a beneficiary account.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (provider.ResolvedAccount, error) {
	payload := map[string]any{
		"beneficiaryAccountNumber":    accountNumber,
		"beneficiaryBankCode":         bankCode,
		"senderTrackingReference":     "",
		"isRequestFromVirtualAccount": true,
	}
	var out struct {
		BeneficiaryAccountNumber string `json:"beneficiaryAccountNumber"`
		BeneficiaryName          string `json:"beneficiaryName"`
	}
	if err := c.call(ctx, serviceNameEnquiry, uuid.NewString(), payload, &out); err != nil {
		return provider.ResolvedAccount{}, err
	}
	return provider.ResolvedAccount{
		AccountNumber: out.BeneficiaryAccountNumber,
		AccountName:   out.BeneficiaryName,
		BankCode:      bankCode,
	}, nil
}

// Institutions lists the banks reachable from this rail.
func (c *Client) Institutions(ctx context.Context) ([]provider.Institution, error) {
	var out struct {
		Banks []struct {
			BankName string `json:"bankName"`
			BankCode string `json:"bankCode"`
		} `json:"banks"`
	}
	if err := c.call(ctx, serviceBankList, uuid.NewString(), nil, &out); err != nil {
		return nil, err
	}
	institutions := make([]provider.Institution, 0, len(out.Banks))
	for _, b := range out.Banks {
		institutions = append(institutions, provider.Institution{Name: b.BankName, Code: b.BankCode})
	}
	return institutions, nil
}

// call sends one envelope request and decodes the data section into out.
// Non-success response codes are translated through the code taxonomy.
func (c *Client) call(ctx context.Context, serviceType, requestRef string, data, out any) error {
	body, err := json.Marshal(envelope{ServiceType: serviceType, RequestRef: requestRef, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", serviceType, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", serviceType, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return provider.NewTransportError(err)
	}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return provider.NewTransportError(fmt.Errorf("%s returned %d", serviceType, httpResp.StatusCode))
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return provider.NewTransportError(fmt.Errorf("decode %s response: %w", serviceType, err))
	}

	if !resp.Status || resp.ResponseCode != codeSuccess {
		kind := kindForCode(resp.ResponseCode)
		c.logger.Warn("ngn rail rejected request",
			slog.String("service", serviceType),
			slog.String("code", resp.ResponseCode),
			slog.String("kind", kind.String()))
		return provider.NewBusinessError(kind, resp.ResponseCode, resp.Message)
	}

	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", serviceType, err)
		}
	}
	return nil
}
