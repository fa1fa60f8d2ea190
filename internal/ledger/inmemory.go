package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu   sync.RWMutex
	rows map[string]Transaction
	seq  int64
}

// NewInMemory creates a concurrency-safe in-memory ledger for tests and dev mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{rows: make(map[string]Transaction)}
}

func (l *inMemoryLedger) Create(_ context.Context, tx Transaction) (Transaction, error) {
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	// Monotonic nanosecond offsets keep the newest-first ordering stable even
	// when several rows land within one clock tick.
	l.seq++
	tx.CreatedAt = now.Add(time.Duration(l.seq))
	tx.UpdatedAt = tx.CreatedAt
	l.rows[tx.ID] = tx
	return tx, nil
}

func (l *inMemoryLedger) MarkStatus(_ context.Context, id, status string) error {
	if !TerminalStatus(status) {
		return ErrInvalidTransition
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.rows[id]
	if !ok {
		return ErrNotFound
	}
	if tx.Status != StatusPending {
		return ErrInvalidTransition
	}
	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	l.rows[id] = tx
	return nil
}

func (l *inMemoryLedger) SetExternalRef(_ context.Context, id, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.rows[id]
	if !ok || tx.Status != StatusPending {
		return ErrNotFound
	}
	tx.ExternalRef = ref
	tx.UpdatedAt = time.Now().UTC()
	l.rows[id] = tx
	return nil
}

func (l *inMemoryLedger) Get(_ context.Context, id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.rows[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (l *inMemoryLedger) FindByExternalRef(_ context.Context, ref string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.rows {
		if tx.ExternalRef != "" && tx.ExternalRef == ref {
			return tx, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (l *inMemoryLedger) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var txs []Transaction
	for _, tx := range l.rows {
		if tx.FromWalletID == walletID || tx.ToWalletID == walletID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

func (l *inMemoryLedger) ListPending(_ context.Context, olderThan time.Time) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var txs []Transaction
	for _, tx := range l.rows {
		if tx.Status == StatusPending && tx.CreatedAt.Before(olderThan) {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.Before(txs[j].CreatedAt) })
	return txs, nil
}
