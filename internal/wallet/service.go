package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veltapay/veltapay/internal/notification"
)

// CustomerCreator registers a wallet owner with the payment processor.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, ownerID string) (string, error)
}

// Service owns wallet provisioning and lookups. Balance mutation is not
// exposed here; money movement goes through the funding and payments services.
type Service struct {
	store     Store
	methods   MethodStore
	customers CustomerCreator
	notifier  notification.Notifier
	currency  string
}

// NewService builds a wallet service.
func NewService(store Store, methods MethodStore, customers CustomerCreator, notifier notification.Notifier, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{store: store, methods: methods, customers: customers, notifier: notifier, currency: currency}
}

// Create provisions the owner's wallet. The processor customer is created
// first: if that call fails nothing local has been written yet.
func (s *Service) Create(ctx context.Context, ownerID string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}

	if _, err := s.store.GetByOwner(ctx, ownerID); err == nil {
		return Wallet{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	customerRef, err := s.customers.CreateCustomer(ctx, ownerID)
	if err != nil {
		return Wallet{}, err
	}

	w := Wallet{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		Balance:             0,
		Currency:            s.currency,
		ExternalCustomerRef: customerRef,
		CreatedAt:           time.Now().UTC(),
	}
	w.UpdatedAt = w.CreatedAt

	// The unique owner index closes the race between the precheck and here.
	if err := s.store.Create(ctx, w); err != nil {
		return Wallet{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Event:   notification.EventWalletCreated,
			OwnerID: ownerID,
			Payload: map[string]any{"wallet_id": w.ID, "currency": w.Currency},
		})
	}

	return w, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.store.Get(ctx, id)
}

// GetByOwner retrieves the owner's wallet.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.store.GetByOwner(ctx, ownerID)
}

// Method resolves a payment method, enforcing that it belongs to the owner.
func (s *Service) Method(ctx context.Context, id, ownerID string) (PaymentMethod, error) {
	return s.methods.GetForOwner(ctx, id, ownerID)
}

// Methods lists the owner's stored payment methods, default first.
func (s *Service) Methods(ctx context.Context, ownerID string) ([]PaymentMethod, error) {
	if _, err := s.store.GetByOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.methods.ListByOwner(ctx, ownerID)
}
