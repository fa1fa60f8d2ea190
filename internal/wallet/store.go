package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no wallet exists for the given id or owner.
	ErrNotFound = errors.New("wallet not found")

	// ErrAlreadyExists indicates the owner already has a wallet.
	ErrAlreadyExists = errors.New("wallet already exists")

	// ErrInsufficientFunds indicates a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMethodNotFound indicates no payment method exists for the id/owner pair.
	ErrMethodNotFound = errors.New("payment method not found")
)

// Store persists wallets. ApplyDelta is the only balance mutation path and
// must be a single conditional update so concurrent operations on the same
// wallet can never interleave into a negative balance or a lost write.
type Store interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	ApplyDelta(ctx context.Context, walletID string, delta int64) (Wallet, error)
}

// MethodStore answers payment-method lookups scoped to an owner. Method CRUD
// against the gateway lives in a separate service; this side only reads.
type MethodStore interface {
	GetForOwner(ctx context.Context, id, ownerID string) (PaymentMethod, error)
	ListByOwner(ctx context.Context, ownerID string) ([]PaymentMethod, error)
}
