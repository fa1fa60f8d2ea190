package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates no transaction matches the lookup.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidTransition indicates an attempt to move a transaction out of a
	// terminal status. pending -> completed|failed|requires_review are the
	// only legal moves.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Transaction types.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTransfer   = "transfer"
)

// Transaction statuses. A failed row means no money moved; requires_review
// marks rows where one side may have committed and a human must reconcile.
const (
	StatusPending        = "pending"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusRequiresReview = "requires_review"
)

// TerminalStatus reports whether a status is a legal target for MarkStatus.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusRequiresReview:
		return true
	}
	return false
}

// Transaction is one ledger entry: the record of intent for a money movement
// and, once completed, the source of truth that money moved.
type Transaction struct {
	ID           string
	Type         string
	Amount       int64
	Currency     string
	FromWalletID string
	ToWalletID   string
	ExternalRef  string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate enforces the shape rules: positive amount and the wallet
// references the type requires.
func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	switch t.Type {
	case TypeDeposit:
		if t.ToWalletID == "" {
			return fmt.Errorf("deposit requires a destination wallet")
		}
	case TypeWithdrawal:
		if t.FromWalletID == "" {
			return fmt.Errorf("withdrawal requires a source wallet")
		}
	case TypeTransfer:
		if t.FromWalletID == "" || t.ToWalletID == "" {
			return fmt.Errorf("transfer requires both wallets")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	switch t.Status {
	case StatusPending, StatusCompleted, StatusFailed, StatusRequiresReview:
	default:
		return fmt.Errorf("unknown transaction status %q", t.Status)
	}
	return nil
}

// Ledger is the append-only transaction record. Beyond the status transition
// keyed by id there is no update-in-place.
type Ledger interface {
	Create(ctx context.Context, tx Transaction) (Transaction, error)
	MarkStatus(ctx context.Context, id, status string) error
	SetExternalRef(ctx context.Context, id, ref string) error
	Get(ctx context.Context, id string) (Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (Transaction, error)
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)
	ListPending(ctx context.Context, olderThan time.Time) ([]Transaction, error)
}
