package funding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/logging"
	"github.com/veltapay/veltapay/internal/wallet"
)

type fixture struct {
	ledger  ledger.Ledger
	store   *wallet.MemoryStore
	gw      *gateway.Static
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	led := ledger.NewInMemory()
	store := wallet.NewMemoryStore()
	gw := gateway.NewStatic()
	return &fixture{
		ledger:  led,
		store:   store,
		gw:      gw,
		service: NewService(led, store, store, gw, nil, logging.Discard()),
	}
}

func (f *fixture) seedWallet(t *testing.T, ownerID string, balance int64) wallet.Wallet {
	t.Helper()
	w := wallet.Wallet{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		Balance:             balance,
		Currency:            "usd",
		ExternalCustomerRef: "cust_" + uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
	}
	w.UpdatedAt = w.CreatedAt
	if err := f.store.Create(context.Background(), w); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

func (f *fixture) seedMethod(ownerID string) wallet.PaymentMethod {
	m := wallet.PaymentMethod{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		ExternalMethodRef: "pm_" + uuid.NewString(),
		Type:              "card",
		Last4:             "4242",
	}
	f.store.SeedMethod(m)
	return m
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 0)
	method := f.seedMethod("owner-1")

	res, err := f.service.Deposit(ctx, DepositInput{OwnerID: "owner-1", Amount: 5_000, PaymentMethodID: method.ID})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected status %s", res.Status)
	}
	if res.NewBalance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", res.NewBalance)
	}

	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 5_000 {
		t.Fatalf("expected stored balance 5000, got %d", stored.Balance)
	}

	tx, err := f.ledger.Get(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.Status != ledger.StatusCompleted || tx.ExternalRef == "" {
		t.Fatalf("expected completed transaction with processor ref, got status=%s ref=%q", tx.Status, tx.ExternalRef)
	}
}

func TestDepositDeclined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 0)
	method := f.seedMethod("owner-1")
	f.gw.ConfirmStatus = gateway.IntentStatusRequiresAction

	_, err := f.service.Deposit(ctx, DepositInput{OwnerID: "owner-1", Amount: 5_000, PaymentMethodID: method.ID})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}

	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 0 {
		t.Fatalf("declined deposit must not credit, got %d", stored.Balance)
	}

	txs, err := f.ledger.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != ledger.StatusFailed {
		t.Fatalf("expected one failed transaction, got %+v", txs)
	}
}

func TestDepositUnknownMethod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWallet(t, "owner-1", 0)

	_, err := f.service.Deposit(ctx, DepositInput{OwnerID: "owner-1", Amount: 5_000, PaymentMethodID: uuid.NewString()})
	if !errors.Is(err, wallet.ErrMethodNotFound) {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 5_000)

	res, err := f.service.Withdraw(ctx, WithdrawInput{OwnerID: "owner-1", Amount: 2_000})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.NewBalance != 3_000 {
		t.Fatalf("expected balance 3000, got %d", res.NewBalance)
	}
	if res.PayoutID == "" || res.PayoutStatus != gateway.PayoutStatusPaid {
		t.Fatalf("unexpected payout result %+v", res)
	}

	tx, err := f.ledger.Get(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.Status != ledger.StatusCompleted || tx.FromWalletID != w.ID {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 1_000)

	_, err := f.service.Withdraw(ctx, WithdrawInput{OwnerID: "owner-1", Amount: 5_000})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 1_000 {
		t.Fatalf("rejected withdrawal must not debit, got %d", stored.Balance)
	}

	txs, err := f.ledger.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("rejected withdrawal must not write a transaction, got %d", len(txs))
	}
}

func TestWithdrawPayoutFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 5_000)
	f.gw.PayoutStatus = gateway.PayoutStatusFailed

	_, err := f.service.Withdraw(ctx, WithdrawInput{OwnerID: "owner-1", Amount: 2_000})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}

	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 5_000 {
		t.Fatalf("failed payout must not debit, got %d", stored.Balance)
	}

	txs, err := f.ledger.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != ledger.StatusFailed {
		t.Fatalf("expected one failed transaction, got %+v", txs)
	}
}

func TestPaymentIntentLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 0)
	method := f.seedMethod("owner-1")

	intent, err := f.service.CreatePaymentIntent(ctx, "owner-1", 7_500)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ClientSecret == "" {
		t.Fatal("expected a client secret")
	}

	pending, err := f.ledger.Get(ctx, intent.TransactionID)
	if err != nil {
		t.Fatalf("get pending transaction: %v", err)
	}
	if pending.Status != ledger.StatusPending || pending.ExternalRef != intent.IntentID {
		t.Fatalf("unexpected pending transaction %+v", pending)
	}

	res, err := f.service.ConfirmPaymentIntent(ctx, "owner-1", intent.IntentID, method.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.NewBalance != 7_500 || res.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected confirm result %+v", res)
	}

	// A replayed confirmation returns the recorded outcome without a second credit.
	again, err := f.service.ConfirmPaymentIntent(ctx, "owner-1", intent.IntentID, method.ID)
	if err != nil {
		t.Fatalf("confirm again: %v", err)
	}
	if again.TransactionID != res.TransactionID {
		t.Fatalf("expected same transaction, got %s and %s", res.TransactionID, again.TransactionID)
	}

	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 7_500 {
		t.Fatalf("replayed confirm must not credit twice, got %d", stored.Balance)
	}
}

// flakyLedger fails a set number of MarkStatus calls.
type flakyLedger struct {
	ledger.Ledger
	failures int
}

func (l *flakyLedger) MarkStatus(ctx context.Context, id, status string) error {
	if l.failures > 0 {
		l.failures--
		return fmt.Errorf("connection reset")
	}
	return l.Ledger.MarkStatus(ctx, id, status)
}

func TestDepositCompletionWriteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 0)
	method := f.seedMethod("owner-1")

	flaky := &flakyLedger{Ledger: f.ledger, failures: 1}
	svc := NewService(flaky, f.store, f.store, f.gw, nil, logging.Discard())

	if _, err := svc.Deposit(ctx, DepositInput{OwnerID: "owner-1", Amount: 5_000, PaymentMethodID: method.ID}); err == nil {
		t.Fatal("expected the completion write failure to surface")
	}

	// The completion write is the commit point; no credit before it.
	stored, err := f.store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != 0 {
		t.Fatalf("interrupted settle must not credit, got %d", stored.Balance)
	}

	txs, err := f.ledger.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != ledger.StatusPending {
		t.Fatalf("expected one pending row for the reconciler, got %+v", txs)
	}
	if txs[0].ExternalRef == "" {
		t.Fatal("pending row must carry the processor reference")
	}
}

// declineConfirmGateway mimics a processor that reports a zero amount on a
// declined confirmation.
type declineConfirmGateway struct {
	gateway.Client
}

func (g declineConfirmGateway) ConfirmIntent(_ context.Context, intentID, _ string) (gateway.Intent, error) {
	return gateway.Intent{ID: intentID, Status: gateway.IntentStatusRequiresAction}, nil
}

func TestConfirmDeclinedOutOfBandIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 0)
	method := f.seedMethod("owner-1")

	svc := NewService(f.ledger, f.store, f.store, declineConfirmGateway{f.gw}, nil, logging.Discard())

	// Intent created outside this service, so no ledger row exists for it.
	intent, err := f.gw.CreateIntent(ctx, 5_000, "usd", w.ExternalCustomerRef)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	_, err = svc.ConfirmPaymentIntent(ctx, "owner-1", intent.ID, method.ID)
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}

	tx, err := f.ledger.FindByExternalRef(ctx, intent.ID)
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", tx.Status)
	}
	if tx.Amount != 5_000 {
		t.Fatalf("row must record the intent amount, got %d", tx.Amount)
	}

	stored, _ := f.store.Get(ctx, w.ID)
	if stored.Balance != 0 {
		t.Fatalf("declined confirm must not credit, got %d", stored.Balance)
	}
}

func TestWithdrawDebitFailureGoesToReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.seedWallet(t, "owner-1", 5_000)

	svc := NewService(f.ledger, failingDebitStore{f.store}, f.store, f.gw, nil, logging.Discard())

	if _, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: "owner-1", Amount: 2_000}); err == nil {
		t.Fatal("expected the debit failure to surface")
	}

	// The payout was already requested, so the row must not claim failure.
	txs, err := f.ledger.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != ledger.StatusRequiresReview {
		t.Fatalf("expected one requires_review row, got %+v", txs)
	}
}

// failingDebitStore rejects debits after the read-time balance check passed.
type failingDebitStore struct {
	*wallet.MemoryStore
}

func (s failingDebitStore) ApplyDelta(ctx context.Context, walletID string, delta int64) (wallet.Wallet, error) {
	if delta < 0 {
		return wallet.Wallet{}, fmt.Errorf("connection reset")
	}
	return s.MemoryStore.ApplyDelta(ctx, walletID, delta)
}

func TestPaymentStatusScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWallet(t, "owner-1", 0)
	f.seedWallet(t, "owner-2", 0)

	intent, err := f.service.CreatePaymentIntent(ctx, "owner-1", 1_000)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	tx, err := f.service.PaymentStatus(ctx, "owner-1", intent.IntentID)
	if err != nil {
		t.Fatalf("status for owner: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("unexpected status %s", tx.Status)
	}

	if _, err := f.service.PaymentStatus(ctx, "owner-2", intent.IntentID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}
