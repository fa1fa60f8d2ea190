package gateway

import (
	"context"
	"errors"
)

// ErrUpstream indicates a non-success response from the payment processor.
var ErrUpstream = errors.New("payment gateway error")

// Intent statuses surfaced by the processor.
const (
	IntentStatusSucceeded      = "succeeded"
	IntentStatusRequiresAction = "requires_action"
	IntentStatusProcessing     = "processing"
	IntentStatusFailed         = "failed"
)

// Payout statuses surfaced by the processor.
const (
	PayoutStatusPaid   = "paid"
	PayoutStatusFailed = "failed"
)

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	Status       string
	Amount       int64
	Currency     string
	ClientSecret string
}

// Payout is the processor's view of a payout request.
type Payout struct {
	ID     string
	Status string
}

// Client is the connector to the external payment processor.
type Client interface {
	CreateCustomer(ctx context.Context, ownerID string) (string, error)
	CreateIntent(ctx context.Context, amount int64, currency, customerRef string) (Intent, error)
	ConfirmIntent(ctx context.Context, intentID, methodRef string) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
	CreatePayout(ctx context.Context, amount int64, currency, customerRef string) (Payout, error)
}
