// Package bankverify resolves payout accounts with a Paystack-compatible
// account resolution API.
package bankverify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/retry"
)

const requestTimeout = 10 * time.Second

// Client implements actions.BankVerifier.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	policy  retry.Config
}

var _ actions.BankVerifier = (*Client)(nil)

// New returns nil when verification is not configured.
func New(cfg config.BankVerificationConfig) *Client {
	if !cfg.IsBankVerificationEnabled() {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GetBankVerifyURL(), "/"),
		key:     cfg.GetBankVerifyKey(),
		http:    &http.Client{Timeout: requestTimeout},
		policy:  retry.Config{MaxRetries: 1, BaseDelay: 300 * time.Millisecond},
	}
}

type resolveResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	} `json:"data"`
}

// Verify resolves the account holder name.
func (c *Client) Verify(ctx context.Context, accountNumber, bankCode string) (actions.BankAccount, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (actions.BankAccount, error) {
		return c.resolve(ctx, accountNumber, bankCode)
	})
}

func (c *Client) resolve(ctx context.Context, accountNumber, bankCode string) (actions.BankAccount, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bank/resolve?"+q.Encode(), nil)
	if err != nil {
		return actions.BankAccount{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return actions.BankAccount{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out resolveResponse
	_ = json.Unmarshal(data, &out)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return actions.BankAccount{}, retry.Transient(fmt.Errorf("bank verification returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusNotFound:
		return actions.BankAccount{}, apperr.Validation("the bank could not find that account number")
	case resp.StatusCode >= http.StatusBadRequest:
		return actions.BankAccount{}, fmt.Errorf("bank verification returned %d: %s", resp.StatusCode, strings.TrimSpace(out.Message))
	case !out.Status || out.Data.AccountName == "":
		return actions.BankAccount{}, apperr.Validation("the bank could not find that account number")
	}

	return actions.BankAccount{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   strings.TrimSpace(out.Data.AccountName),
	}, nil
}
