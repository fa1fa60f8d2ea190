package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/notification"
	"github.com/veltapay/veltapay/internal/wallet"
)

// ErrPaymentFailed indicates the processor answered but the payment did not
// reach a successful status.
var ErrPaymentFailed = errors.New("payment not successful")

// Service orchestrates the money flows that touch the payment processor:
// deposits, withdrawals and the lower-level intent primitives. Each flow
// persists a pending transaction before the first processor call so the
// reconciler can resolve anything interrupted mid-flight.
type Service struct {
	ledger   ledger.Ledger
	store    wallet.Store
	methods  wallet.MethodStore
	gw       gateway.Client
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the funding orchestrator.
func NewService(led ledger.Ledger, store wallet.Store, methods wallet.MethodStore, gw gateway.Client, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: led, store: store, methods: methods, gw: gw, notifier: notifier, logger: logger}
}

// DepositInput captures a card deposit request.
type DepositInput struct {
	OwnerID         string
	Amount          int64
	PaymentMethodID string
}

// DepositResult is the client-visible outcome of a deposit.
type DepositResult struct {
	TransactionID string
	ExternalRef   string
	Amount        int64
	Currency      string
	Status        string
	NewBalance    int64
}

// Deposit funds the owner's wallet from a stored payment method. The balance
// increments if and only if the processor confirms the intent as succeeded.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	if input.Amount <= 0 {
		return DepositResult{}, fmt.Errorf("amount must be positive")
	}

	w, err := s.store.GetByOwner(ctx, input.OwnerID)
	if err != nil {
		return DepositResult{}, err
	}
	method, err := s.methods.GetForOwner(ctx, input.PaymentMethodID, input.OwnerID)
	if err != nil {
		return DepositResult{}, err
	}

	tx, err := s.ledger.Create(ctx, ledger.Transaction{
		ID:         uuid.NewString(),
		Type:       ledger.TypeDeposit,
		Amount:     input.Amount,
		Currency:   w.Currency,
		ToWalletID: w.ID,
		Status:     ledger.StatusPending,
	})
	if err != nil {
		return DepositResult{}, err
	}

	intent, err := s.gw.CreateIntent(ctx, input.Amount, w.Currency, w.ExternalCustomerRef)
	if err != nil {
		s.fail(ctx, tx.ID)
		return DepositResult{}, err
	}
	if err := s.ledger.SetExternalRef(ctx, tx.ID, intent.ID); err != nil {
		s.fail(ctx, tx.ID)
		return DepositResult{}, err
	}

	confirmed, err := s.gw.ConfirmIntent(ctx, intent.ID, method.ExternalMethodRef)
	if err != nil {
		s.fail(ctx, tx.ID)
		return DepositResult{}, err
	}
	if confirmed.Status != gateway.IntentStatusSucceeded {
		s.fail(ctx, tx.ID)
		return DepositResult{}, fmt.Errorf("%w: intent status %s", ErrPaymentFailed, confirmed.Status)
	}

	return s.settleDeposit(ctx, tx.ID, intent.ID, w, input.Amount)
}

// settleDeposit is the shared tail of Deposit and ConfirmPaymentIntent. The
// guarded pending -> completed transition is the commit point: whoever wins
// it applies the credit, exactly once. A pending row therefore always means
// the wallet has not been credited yet.
func (s *Service) settleDeposit(ctx context.Context, txID, externalRef string, w wallet.Wallet, amount int64) (DepositResult, error) {
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusCompleted); err != nil {
		// The row stays pending and the reconciler settles it later.
		s.logger.Error("deposit completion write failed",
			slog.String("transaction_id", txID),
			slog.Any("error", err),
		)
		return DepositResult{}, err
	}
	updated, err := s.store.ApplyDelta(ctx, w.ID, amount)
	if err != nil {
		// Completed row without its credit. The completed ledger entry is the
		// record to reconcile the balance against by hand.
		s.logger.Error("deposit credit failed after completion",
			slog.String("transaction_id", txID),
			slog.String("wallet_id", w.ID),
			slog.Any("error", err),
		)
		return DepositResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Event:   notification.EventDepositCompleted,
			OwnerID: w.OwnerID,
			Payload: map[string]any{"transaction_id": txID, "amount": amount, "balance": updated.Balance},
		})
	}

	return DepositResult{
		TransactionID: txID,
		ExternalRef:   externalRef,
		Amount:        amount,
		Currency:      w.Currency,
		Status:        ledger.StatusCompleted,
		NewBalance:    updated.Balance,
	}, nil
}

// WithdrawInput captures a payout request.
type WithdrawInput struct {
	OwnerID string
	Amount  int64
}

// WithdrawResult is the client-visible outcome of a withdrawal.
type WithdrawResult struct {
	TransactionID string
	PayoutID      string
	PayoutStatus  string
	Amount        int64
	Currency      string
	NewBalance    int64
}

// Withdraw pays out from the owner's wallet. Insufficient funds is rejected
// before any external call; the guarded debit closes the remaining race.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (WithdrawResult, error) {
	if input.Amount <= 0 {
		return WithdrawResult{}, fmt.Errorf("amount must be positive")
	}

	w, err := s.store.GetByOwner(ctx, input.OwnerID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if input.Amount > w.Balance {
		return WithdrawResult{}, wallet.ErrInsufficientFunds
	}

	tx, err := s.ledger.Create(ctx, ledger.Transaction{
		ID:           uuid.NewString(),
		Type:         ledger.TypeWithdrawal,
		Amount:       input.Amount,
		Currency:     w.Currency,
		FromWalletID: w.ID,
		Status:       ledger.StatusPending,
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	payout, err := s.gw.CreatePayout(ctx, input.Amount, w.Currency, w.ExternalCustomerRef)
	if err != nil {
		s.fail(ctx, tx.ID)
		return WithdrawResult{}, err
	}
	if payout.Status == gateway.PayoutStatusFailed {
		s.fail(ctx, tx.ID)
		return WithdrawResult{}, fmt.Errorf("%w: payout status %s", ErrPaymentFailed, payout.Status)
	}
	if err := s.ledger.SetExternalRef(ctx, tx.ID, payout.ID); err != nil {
		s.logger.Warn("payout reference not recorded", slog.String("transaction_id", tx.ID), slog.Any("error", err))
	}

	updated, err := s.store.ApplyDelta(ctx, w.ID, -input.Amount)
	if err != nil {
		// A concurrent debit can win between the read-time check and here.
		// The payout is already requested, so this is not a clean failure:
		// the row goes to review instead of claiming nothing moved.
		s.review(ctx, tx.ID)
		s.logger.Error("withdrawal debit failed after payout request",
			slog.String("transaction_id", tx.ID),
			slog.String("payout_id", payout.ID),
			slog.Any("error", err),
		)
		return WithdrawResult{}, err
	}
	if err := s.ledger.MarkStatus(ctx, tx.ID, ledger.StatusCompleted); err != nil {
		s.logger.Error("withdrawal completion write failed after debit",
			slog.String("transaction_id", tx.ID),
			slog.Any("error", err),
		)
		return WithdrawResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Event:   notification.EventWithdrawCompleted,
			OwnerID: w.OwnerID,
			Payload: map[string]any{"transaction_id": tx.ID, "amount": input.Amount, "balance": updated.Balance},
		})
	}

	return WithdrawResult{
		TransactionID: tx.ID,
		PayoutID:      payout.ID,
		PayoutStatus:  payout.Status,
		Amount:        input.Amount,
		Currency:      w.Currency,
		NewBalance:    updated.Balance,
	}, nil
}

// IntentResult describes a created payment intent awaiting confirmation.
type IntentResult struct {
	IntentID      string
	ClientSecret  string
	Status        string
	Amount        int64
	Currency      string
	TransactionID string
}

// CreatePaymentIntent opens an intent for UI-driven funding, recording the
// pending transaction against the intent reference.
func (s *Service) CreatePaymentIntent(ctx context.Context, ownerID string, amount int64) (IntentResult, error) {
	if amount <= 0 {
		return IntentResult{}, fmt.Errorf("amount must be positive")
	}
	w, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return IntentResult{}, err
	}

	intent, err := s.gw.CreateIntent(ctx, amount, w.Currency, w.ExternalCustomerRef)
	if err != nil {
		return IntentResult{}, err
	}

	tx, err := s.ledger.Create(ctx, ledger.Transaction{
		ID:          uuid.NewString(),
		Type:        ledger.TypeDeposit,
		Amount:      amount,
		Currency:    w.Currency,
		ToWalletID:  w.ID,
		ExternalRef: intent.ID,
		Status:      ledger.StatusPending,
	})
	if err != nil {
		return IntentResult{}, err
	}

	return IntentResult{
		IntentID:      intent.ID,
		ClientSecret:  intent.ClientSecret,
		Status:        intent.Status,
		Amount:        amount,
		Currency:      w.Currency,
		TransactionID: tx.ID,
	}, nil
}

// ConfirmPaymentIntent funds a previously created intent. A succeeded
// confirmation runs the same credit-and-complete tail as Deposit. Confirming
// an already-completed intent returns the recorded outcome.
func (s *Service) ConfirmPaymentIntent(ctx context.Context, ownerID, intentID, paymentMethodID string) (DepositResult, error) {
	w, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return DepositResult{}, err
	}
	method, err := s.methods.GetForOwner(ctx, paymentMethodID, ownerID)
	if err != nil {
		return DepositResult{}, err
	}

	tx, err := s.ledger.FindByExternalRef(ctx, intentID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return DepositResult{}, err
	}
	if err == nil {
		if tx.ToWalletID != w.ID {
			return DepositResult{}, ledger.ErrNotFound
		}
		if tx.Status == ledger.StatusCompleted {
			return DepositResult{
				TransactionID: tx.ID,
				ExternalRef:   intentID,
				Amount:        tx.Amount,
				Currency:      tx.Currency,
				Status:        tx.Status,
				NewBalance:    w.Balance,
			}, nil
		}
		if tx.Status == ledger.StatusFailed {
			return DepositResult{}, fmt.Errorf("%w: intent already failed", ErrPaymentFailed)
		}
	}

	// Intents created out-of-band still get a ledger row before money moves.
	// The amount comes from the processor's view of the intent, which is set
	// at creation and survives a declined confirmation.
	if tx.ID == "" {
		intent, err := s.gw.GetIntent(ctx, intentID)
		if err != nil {
			return DepositResult{}, err
		}
		tx, err = s.ledger.Create(ctx, ledger.Transaction{
			ID:          uuid.NewString(),
			Type:        ledger.TypeDeposit,
			Amount:      intent.Amount,
			Currency:    w.Currency,
			ToWalletID:  w.ID,
			ExternalRef: intentID,
			Status:      ledger.StatusPending,
		})
		if err != nil {
			return DepositResult{}, err
		}
	}

	confirmed, err := s.gw.ConfirmIntent(ctx, intentID, method.ExternalMethodRef)
	if err != nil {
		return DepositResult{}, err
	}

	if confirmed.Status != gateway.IntentStatusSucceeded {
		s.fail(ctx, tx.ID)
		return DepositResult{}, fmt.Errorf("%w: intent status %s", ErrPaymentFailed, confirmed.Status)
	}

	return s.settleDeposit(ctx, tx.ID, intentID, w, tx.Amount)
}

// PaymentStatus reports the ledger's view of a payment by processor
// reference, scoped to the caller's own wallet.
func (s *Service) PaymentStatus(ctx context.Context, ownerID, ref string) (ledger.Transaction, error) {
	w, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx, err := s.ledger.FindByExternalRef(ctx, ref)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.FromWalletID != w.ID && tx.ToWalletID != w.ID {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	return tx, nil
}

// fail marks the transaction failed, best-effort. The transition can lose to
// the reconciler; that is fine, both sides write the same terminal state.
func (s *Service) fail(ctx context.Context, txID string) {
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusFailed); err != nil && !errors.Is(err, ledger.ErrInvalidTransition) {
		s.logger.Warn("transaction not marked failed", slog.String("transaction_id", txID), slog.Any("error", err))
	}
}

// review marks the transaction for manual reconciliation, best-effort.
func (s *Service) review(ctx context.Context, txID string) {
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusRequiresReview); err != nil && !errors.Is(err, ledger.ErrInvalidTransition) {
		s.logger.Warn("transaction not marked for review", slog.String("transaction_id", txID), slog.Any("error", err))
	}
}
