package mangopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TransferError indicates the provider rejected or failed a money
// movement (insufficient funds, closed wallet, business rule).
type TransferError struct {
	Operation     string
	ResultCode    string
	ResultMessage string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("mangopay: %s failed: %s (%s)", e.Operation, e.ResultMessage, e.ResultCode)
}

// ErrNotFound indicates the provider resource does not exist.
var ErrNotFound = errors.New("mangopay: resource not found")

// Client wraps the narrow slice of the provider REST API the settlement
// engine consumes.
type Client struct {
	baseURL    string
	clientID   string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, clientID, apiKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	url := fmt.Sprintf("%s/v2.01/%s%s", c.baseURL, c.clientID, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.clientID, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mangopay: %s %s returned status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PayIn fetches the authoritative pay-in state by id.
func (c *Client) PayIn(ctx context.Context, id string) (*PayIn, error) {
	var p PayIn
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/payins/%s", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PayOut fetches a payout by id.
func (c *Client) PayOut(ctx context.Context, id string) (*PayOut, error) {
	var p PayOut
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/payouts/%s", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Wallet fetches a wallet by id.
func (c *Client) Wallet(ctx context.Context, id string) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/wallets/%s", id), nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// UserWallets lists the wallets owned by a provider user.
func (c *Client) UserWallets(ctx context.Context, userID string) ([]Wallet, error) {
	var wallets []Wallet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%s/wallets", userID), nil, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// BankingAlias fetches a banking alias by id.
func (c *Client) BankingAlias(ctx context.Context, id string) (*BankingAlias, error) {
	var a BankingAlias
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bankingaliases/%s", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

type fundsPayload struct {
	Currency string `json:"Currency"`
	Amount   int64  `json:"Amount"`
}

// Transfer moves funds between two wallets. A provider-side rejection
// is returned as *TransferError.
func (c *Client) Transfer(ctx context.Context, input TransferInput) (*Transfer, error) {
	payload := map[string]any{
		"AuthorId":         input.AuthorID,
		"DebitedWalletId":  input.DebitedWalletID,
		"CreditedWalletId": input.CreditedWalletID,
		"DebitedFunds":     fundsPayload{Currency: input.Currency, Amount: ToCents(input.Amount)},
		"Fees":             fundsPayload{Currency: input.Currency, Amount: ToCents(input.Fees)},
		"Tag":              input.Tag,
	}
	var t Transfer
	if err := c.do(ctx, http.MethodPost, "/transfers", payload, &t); err != nil {
		return nil, err
	}
	if t.Status == StatusFailed {
		return nil, &TransferError{Operation: "transfer", ResultCode: t.ResultCode, ResultMessage: t.ResultMessage}
	}
	return &t, nil
}

// CreatePayOut moves funds from a wallet to the owner's bank account.
func (c *Client) CreatePayOut(ctx context.Context, input PayOutInput) (*PayOut, error) {
	payload := map[string]any{
		"AuthorId":        input.AuthorID,
		"DebitedWalletId": input.DebitedWalletID,
		"BankAccountId":   input.BankAccountID,
		"DebitedFunds":    fundsPayload{Currency: input.Currency, Amount: ToCents(input.Amount)},
		"Fees":            fundsPayload{Currency: input.Currency, Amount: ToCents(input.Fees)},
		"Tag":             input.Tag,
	}
	var p PayOut
	if err := c.do(ctx, http.MethodPost, "/payouts/bankwire", payload, &p); err != nil {
		return nil, err
	}
	if p.Status == StatusFailed {
		return nil, &TransferError{Operation: "payout", ResultCode: p.ResultCode, ResultMessage: p.ResultMessage}
	}
	return &p, nil
}
