package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/notification"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Service orchestrates wallet-to-wallet transfers and transaction listings.
type Service struct {
	ledger   ledger.Ledger
	store    wallet.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the payments orchestrator.
func NewService(led ledger.Ledger, store wallet.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: led, store: store, notifier: notifier, logger: logger}
}

// TransferInput captures a P2P transfer request.
type TransferInput struct {
	FromOwnerID string
	ToOwnerID   string
	Amount      int64
}

// TransferResult reports both post-transfer balances.
type TransferResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Transfer moves funds between two wallets. The debit and credit are
// independent commits: a crash between them leaves a transient imbalance that
// the pending ledger row records for reconciliation. The visible sum of both
// balances is otherwise conserved.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	if input.FromOwnerID == input.ToOwnerID {
		return TransferResult{}, fmt.Errorf("cannot transfer to the same owner")
	}

	// Independent reads: fetch both wallets concurrently, join before moving on.
	var fromWallet, toWallet wallet.Wallet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fromWallet, err = s.store.GetByOwner(gctx, input.FromOwnerID)
		return err
	})
	g.Go(func() error {
		var err error
		toWallet, err = s.store.GetByOwner(gctx, input.ToOwnerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return TransferResult{}, err
	}

	if input.Amount > fromWallet.Balance {
		return TransferResult{}, wallet.ErrInsufficientFunds
	}

	tx, err := s.ledger.Create(ctx, ledger.Transaction{
		ID:           uuid.NewString(),
		Type:         ledger.TypeTransfer,
		Amount:       input.Amount,
		Currency:     fromWallet.Currency,
		FromWalletID: fromWallet.ID,
		ToWalletID:   toWallet.ID,
		Status:       ledger.StatusPending,
	})
	if err != nil {
		return TransferResult{}, err
	}

	debited, err := s.store.ApplyDelta(ctx, fromWallet.ID, -input.Amount)
	if err != nil {
		s.fail(ctx, tx.ID)
		return TransferResult{}, err
	}

	credited, err := s.store.ApplyDelta(ctx, toWallet.ID, input.Amount)
	if err != nil {
		// The debit committed but the credit did not: money is conserved only
		// once a human resolves this row. Failed would claim nothing moved.
		s.review(ctx, tx.ID)
		s.logger.Error("transfer credit failed after debit",
			slog.String("transaction_id", tx.ID),
			slog.String("from_wallet_id", fromWallet.ID),
			slog.String("to_wallet_id", toWallet.ID),
			slog.Int64("amount", input.Amount),
			slog.Any("error", err),
		)
		return TransferResult{}, err
	}

	if err := s.ledger.MarkStatus(ctx, tx.ID, ledger.StatusCompleted); err != nil {
		s.logger.Error("transfer completion write failed",
			slog.String("transaction_id", tx.ID),
			slog.Any("error", err),
		)
		return TransferResult{}, err
	}

	s.notifyBothSides(ctx, input, fromWallet, toWallet)

	return TransferResult{
		TransactionID: tx.ID,
		FromBalance:   debited.Balance,
		ToBalance:     credited.Balance,
	}, nil
}

// notifyBothSides tells sender and receiver about the transfer. Both
// dispatches run concurrently and neither blocks nor fails the transfer.
func (s *Service) notifyBothSides(ctx context.Context, input TransferInput, from, to wallet.Wallet) {
	if s.notifier == nil {
		return
	}
	var g errgroup.Group
	g.Go(func() error {
		return s.notifier.Send(ctx, notification.Message{
			Event:   notification.EventTransferSent,
			OwnerID: from.OwnerID,
			Payload: map[string]any{"amount": input.Amount, "to_owner_id": to.OwnerID},
		})
	})
	g.Go(func() error {
		return s.notifier.Send(ctx, notification.Message{
			Event:   notification.EventTransferReceived,
			OwnerID: to.OwnerID,
			Payload: map[string]any{"amount": input.Amount, "from_owner_id": from.OwnerID},
		})
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("transfer notification failed", slog.Any("error", err))
	}
}

// ListTransactions returns every ledger entry touching the owner's wallet,
// most recent first.
func (s *Service) ListTransactions(ctx context.Context, ownerID string) ([]ledger.Transaction, error) {
	w, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByWallet(ctx, w.ID)
}

func (s *Service) fail(ctx context.Context, txID string) {
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusFailed); err != nil {
		s.logger.Warn("transaction not marked failed", slog.String("transaction_id", txID), slog.Any("error", err))
	}
}

func (s *Service) review(ctx context.Context, txID string) {
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusRequiresReview); err != nil {
		s.logger.Warn("transaction not marked for review", slog.String("transaction_id", txID), slog.Any("error", err))
	}
}
