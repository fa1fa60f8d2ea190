package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Static simulates the payment processor. Confirm and payout outcomes are
// scriptable so tests can exercise declined and stuck payments.
type Static struct {
	mu sync.Mutex

	// ConfirmStatus is returned from ConfirmIntent; defaults to succeeded.
	ConfirmStatus string
	// PayoutStatus is returned from CreatePayout; defaults to paid.
	PayoutStatus string
	// Fail makes every call return ErrUpstream.
	Fail bool

	intents map[string]Intent
}

// NewStatic builds a processor stub that approves everything.
func NewStatic() *Static {
	return &Static{intents: make(map[string]Intent)}
}

func (s *Static) CreateCustomer(_ context.Context, ownerID string) (string, error) {
	if s.Fail {
		return "", fmt.Errorf("%w: simulated outage", ErrUpstream)
	}
	return "cust_" + uuid.NewString(), nil
}

func (s *Static) CreateIntent(_ context.Context, amount int64, currency, _ string) (Intent, error) {
	if s.Fail {
		return Intent{}, fmt.Errorf("%w: simulated outage", ErrUpstream)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	intent := Intent{
		ID:           "pi_" + uuid.NewString(),
		Status:       IntentStatusProcessing,
		Amount:       amount,
		Currency:     currency,
		ClientSecret: "secret_" + uuid.NewString(),
	}
	s.intents[intent.ID] = intent
	return intent, nil
}

func (s *Static) ConfirmIntent(_ context.Context, intentID, _ string) (Intent, error) {
	if s.Fail {
		return Intent{}, fmt.Errorf("%w: simulated outage", ErrUpstream)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[intentID]
	if !ok {
		return Intent{}, fmt.Errorf("%w: unknown intent %s", ErrUpstream, intentID)
	}
	intent.Status = s.ConfirmStatus
	if intent.Status == "" {
		intent.Status = IntentStatusSucceeded
	}
	s.intents[intentID] = intent
	return intent, nil
}

func (s *Static) GetIntent(_ context.Context, intentID string) (Intent, error) {
	if s.Fail {
		return Intent{}, fmt.Errorf("%w: simulated outage", ErrUpstream)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[intentID]
	if !ok {
		return Intent{}, fmt.Errorf("%w: unknown intent %s", ErrUpstream, intentID)
	}
	return intent, nil
}

func (s *Static) CreatePayout(_ context.Context, amount int64, currency, _ string) (Payout, error) {
	if s.Fail {
		return Payout{}, fmt.Errorf("%w: simulated outage", ErrUpstream)
	}
	status := s.PayoutStatus
	if status == "" {
		status = PayoutStatusPaid
	}
	return Payout{ID: "po_" + uuid.NewString(), Status: status}, nil
}

// SetIntentStatus overrides a stored intent's status. Test helper for
// reconciliation scenarios.
func (s *Static) SetIntentStatus(intentID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentID]; ok {
		intent.Status = status
		s.intents[intentID] = intent
	}
}
