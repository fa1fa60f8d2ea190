package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists transactions in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const txColumns = `id, type, amount, currency,
        COALESCE(from_wallet_id, ''), COALESCE(to_wallet_id, ''), COALESCE(external_ref, ''),
        status, created_at, updated_at`

// Create appends a transaction row.
func (l *PostgresLedger) Create(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	_, err := l.db.Exec(ctx, `INSERT INTO transactions
        (id, type, amount, currency, from_wallet_id, to_wallet_id, external_ref, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $9)`,
		tx.ID, tx.Type, tx.Amount, tx.Currency, tx.FromWalletID, tx.ToWalletID, tx.ExternalRef, tx.Status, now)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// MarkStatus moves a pending transaction to a terminal status. Terminal rows
// never transition again; the status guard lives in the WHERE clause.
func (l *PostgresLedger) MarkStatus(ctx context.Context, id, status string) error {
	if !TerminalStatus(status) {
		return ErrInvalidTransition
	}
	tag, err := l.db.Exec(ctx, `UPDATE transactions SET status = $2, updated_at = $3
        WHERE id = $1 AND status = $4`, id, status, time.Now().UTC(), StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// SetExternalRef attaches the processor reference to a pending transaction.
func (l *PostgresLedger) SetExternalRef(ctx context.Context, id, ref string) error {
	tag, err := l.db.Exec(ctx, `UPDATE transactions SET external_ref = $2, updated_at = $3
        WHERE id = $1 AND status = $4`, id, ref, time.Now().UTC(), StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a transaction by id.
func (l *PostgresLedger) Get(ctx context.Context, id string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// FindByExternalRef fetches a transaction by its processor reference.
func (l *PostgresLedger) FindByExternalRef(ctx context.Context, ref string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE external_ref = $1`, ref)
	return scanTransaction(row)
}

// ListByWallet returns every transaction touching the wallet, newest first.
func (l *PostgresLedger) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE from_wallet_id = $1 OR to_wallet_id = $1
        ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListPending returns pending transactions created before the cutoff, oldest
// first, for the reconciler.
func (l *PostgresLedger) ListPending(ctx context.Context, olderThan time.Time) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE status = $1 AND created_at < $2
        ORDER BY created_at ASC`, StatusPending, olderThan.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var createdAt, updatedAt time.Time
	if err := row.Scan(&tx.ID, &tx.Type, &tx.Amount, &tx.Currency,
		&tx.FromWalletID, &tx.ToWalletID, &tx.ExternalRef,
		&tx.Status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}
