package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks to the payment processor's REST API. Every call carries a
// bounded timeout via the underlying http.Client; a timeout is a fatal
// failure of that step, never retried here.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	tokens  TokenProvider
}

// NewHTTPClient builds the processor connector.
func NewHTTPClient(baseURL string, tokens TokenProvider, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

type customerRequest struct {
	ExternalID string `json:"external_id"`
}

type customerResponse struct {
	ID string `json:"id"`
}

// CreateCustomer registers the owner with the processor and returns its reference.
func (c *HTTPClient) CreateCustomer(ctx context.Context, ownerID string) (string, error) {
	var decoded customerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/customers", customerRequest{ExternalID: ownerID}, &decoded); err != nil {
		return "", err
	}
	return decoded.ID, nil
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer"`
}

type intentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntent opens a payment intent for the given amount.
func (c *HTTPClient) CreateIntent(ctx context.Context, amount int64, currency, customerRef string) (Intent, error) {
	var decoded intentResponse
	err := c.do(ctx, http.MethodPost, "/v1/payment_intents", intentRequest{Amount: amount, Currency: currency, Customer: customerRef}, &decoded)
	if err != nil {
		return Intent{}, err
	}
	return decoded.toIntent(), nil
}

type confirmRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// ConfirmIntent funds a previously created intent with the given method.
func (c *HTTPClient) ConfirmIntent(ctx context.Context, intentID, methodRef string) (Intent, error) {
	var decoded intentResponse
	path := fmt.Sprintf("/v1/payment_intents/%s/confirm", intentID)
	if err := c.do(ctx, http.MethodPost, path, confirmRequest{PaymentMethod: methodRef}, &decoded); err != nil {
		return Intent{}, err
	}
	return decoded.toIntent(), nil
}

// GetIntent fetches the current processor state of an intent.
func (c *HTTPClient) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	var decoded intentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &decoded); err != nil {
		return Intent{}, err
	}
	return decoded.toIntent(), nil
}

type payoutRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer"`
}

type payoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePayout requests a payout to the customer's linked destination.
func (c *HTTPClient) CreatePayout(ctx context.Context, amount int64, currency, customerRef string) (Payout, error) {
	var decoded payoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", payoutRequest{Amount: amount, Currency: currency, Customer: customerRef}, &decoded); err != nil {
		return Payout{}, err
	}
	return Payout{ID: decoded.ID, Status: decoded.Status}, nil
}

func (r intentResponse) toIntent() Intent {
	return Intent{
		ID:           r.ID,
		Status:       r.Status,
		Amount:       r.Amount,
		Currency:     r.Currency,
		ClientSecret: r.ClientSecret,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.GetValid(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstream, method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstream, path, err)
	}
	return nil
}
