package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Reconciler resolves transactions stuck in pending: rows whose flow was
// interrupted between the ledger write and the terminal status. Deposits are
// settled from processor state; withdrawals and transfers past the TTL are
// marked requires_review, since payout and balance state cannot be re-derived
// from the processor alone and money may have moved on one side.
type Reconciler struct {
	ledger     ledger.Ledger
	store      wallet.Store
	gw         gateway.Client
	pendingTTL time.Duration
	logger     *slog.Logger
}

// New builds a reconciler.
func New(led ledger.Ledger, store wallet.Store, gw gateway.Client, pendingTTL time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{ledger: led, store: store, gw: gw, pendingTTL: pendingTTL, logger: logger}
}

// Run performs one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-r.pendingTTL)
	pending, err := r.ledger.ListPending(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.resolve(ctx, tx)
	}
	return nil
}

// Loop runs passes on the given interval until the context is canceled.
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reconciliation pass failed", slog.Any("error", err))
			}
		}
	}
}

func (r *Reconciler) resolve(ctx context.Context, tx ledger.Transaction) {
	switch tx.Type {
	case ledger.TypeDeposit:
		r.resolveDeposit(ctx, tx)
	default:
		// Withdrawals and transfers cannot be settled from processor state.
		r.escalate(ctx, tx, "requires manual reconciliation")
	}
}

func (r *Reconciler) resolveDeposit(ctx context.Context, tx ledger.Transaction) {
	if tx.ExternalRef == "" {
		// Never reached the processor; no money moved anywhere.
		r.expire(ctx, tx, "no processor reference")
		return
	}

	intent, err := r.gw.GetIntent(ctx, tx.ExternalRef)
	if err != nil {
		// Processor unreachable; leave pending and retry next pass.
		r.logger.Warn("intent lookup failed",
			slog.String("transaction_id", tx.ID),
			slog.String("external_ref", tx.ExternalRef),
			slog.Any("error", err),
		)
		return
	}

	switch intent.Status {
	case gateway.IntentStatusSucceeded:
		// Winning the pending -> completed transition claims the credit, so
		// concurrent settlers apply it at most once.
		if err := r.ledger.MarkStatus(ctx, tx.ID, ledger.StatusCompleted); err != nil {
			if errors.Is(err, ledger.ErrInvalidTransition) {
				// Another settler won the transition and owns the credit.
				return
			}
			r.logger.Error("reconciled completion write failed",
				slog.String("transaction_id", tx.ID),
				slog.Any("error", err),
			)
			return
		}
		if _, err := r.store.ApplyDelta(ctx, tx.ToWalletID, tx.Amount); err != nil {
			r.logger.Error("reconciled credit failed after completion",
				slog.String("transaction_id", tx.ID),
				slog.String("wallet_id", tx.ToWalletID),
				slog.Any("error", err),
			)
			return
		}
		r.logger.Info("pending deposit settled",
			slog.String("transaction_id", tx.ID),
			slog.Int64("amount", tx.Amount),
		)
	case gateway.IntentStatusFailed:
		r.expire(ctx, tx, "intent failed at processor")
	default:
		// Still processing or waiting on the user past the TTL: give up.
		r.expire(ctx, tx, "intent never reached a terminal status")
	}
}

func (r *Reconciler) expire(ctx context.Context, tx ledger.Transaction, reason string) {
	if err := r.ledger.MarkStatus(ctx, tx.ID, ledger.StatusFailed); err != nil {
		r.logger.Warn("pending transaction not expired",
			slog.String("transaction_id", tx.ID),
			slog.Any("error", err),
		)
		return
	}
	r.logger.Info("pending transaction expired",
		slog.String("transaction_id", tx.ID),
		slog.String("type", tx.Type),
		slog.String("reason", reason),
	)
}

// escalate marks a row a human has to look at. Unlike expire it makes no
// claim that the money did not move.
func (r *Reconciler) escalate(ctx context.Context, tx ledger.Transaction, reason string) {
	if err := r.ledger.MarkStatus(ctx, tx.ID, ledger.StatusRequiresReview); err != nil {
		r.logger.Warn("pending transaction not escalated",
			slog.String("transaction_id", tx.ID),
			slog.Any("error", err),
		)
		return
	}
	r.logger.Warn("pending transaction needs manual review",
		slog.String("transaction_id", tx.ID),
		slog.String("type", tx.Type),
		slog.String("reason", reason),
	)
}
