package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedWallet(t *testing.T, store *MemoryStore, ownerID string, balance int64) Wallet {
	t.Helper()
	w := Wallet{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		Balance:             balance,
		Currency:            "usd",
		ExternalCustomerRef: "cust_" + uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
	}
	w.UpdatedAt = w.CreatedAt
	if err := store.Create(context.Background(), w); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

func TestMemoryStoreCreateRejectsDuplicateOwner(t *testing.T) {
	store := NewMemoryStore()
	w := seedWallet(t, store, "owner-1", 0)

	err := store.Create(context.Background(), Wallet{ID: uuid.NewString(), OwnerID: w.OwnerID})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestMemoryStoreApplyDeltaGuardsBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	w := seedWallet(t, store, "owner-1", 1_000)

	updated, err := store.ApplyDelta(ctx, w.ID, -400)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if updated.Balance != 600 {
		t.Fatalf("expected balance 600, got %d", updated.Balance)
	}

	if _, err := store.ApplyDelta(ctx, w.ID, -700); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	got, err := store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 600 {
		t.Fatalf("rejected debit must not change balance, got %d", got.Balance)
	}

	if _, err := store.ApplyDelta(ctx, uuid.NewString(), 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreMethodOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedWallet(t, store, "owner-1", 0)

	method := PaymentMethod{
		ID:                uuid.NewString(),
		OwnerID:           "owner-1",
		ExternalMethodRef: "pm_" + uuid.NewString(),
		Type:              "card",
		Last4:             "4242",
	}
	store.SeedMethod(method)

	got, err := store.GetForOwner(ctx, method.ID, "owner-1")
	if err != nil {
		t.Fatalf("get for owner: %v", err)
	}
	if got.ExternalMethodRef != method.ExternalMethodRef {
		t.Fatalf("unexpected method ref %s", got.ExternalMethodRef)
	}

	if _, err := store.GetForOwner(ctx, method.ID, "owner-2"); !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("expected method not found for foreign owner, got %v", err)
	}
}
