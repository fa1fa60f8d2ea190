package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const walletColumns = `id, owner_id, balance, currency, external_customer_ref, created_at, updated_at`

// PostgresStore stores wallets in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a wallet store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a wallet row. The unique index on owner_id enforces the
// one-wallet-per-owner invariant at the storage layer.
func (s *PostgresStore) Create(ctx context.Context, w Wallet) error {
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, balance, currency, external_customer_ref, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		w.ID, w.OwnerID, w.Balance, w.Currency, w.ExternalCustomerRef, w.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Get fetches a wallet by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

// GetByOwner fetches a wallet by owner identifier.
func (s *PostgresStore) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row)
}

// ApplyDelta adjusts the balance by delta in a single guarded update. The
// balance >= 0 guard lives in the WHERE clause, so a losing concurrent debit
// simply matches no row instead of committing a negative balance.
func (s *PostgresStore) ApplyDelta(ctx context.Context, walletID string, delta int64) (Wallet, error) {
	row := s.db.QueryRow(ctx, `UPDATE wallets
        SET balance = balance + $2, updated_at = $3
        WHERE id = $1 AND balance + $2 >= 0
        RETURNING `+walletColumns, walletID, delta, time.Now().UTC())

	w, err := scanWallet(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	// No row matched: either the wallet is missing or the guard rejected the debit.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); err != nil {
		return Wallet{}, err
	}
	if !exists {
		return Wallet{}, ErrNotFound
	}
	return Wallet{}, ErrInsufficientFunds
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var createdAt, updatedAt time.Time
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Currency, &w.ExternalCustomerRef, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

// PostgresMethodStore reads payment methods from PostgreSQL.
type PostgresMethodStore struct {
	db *pgxpool.Pool
}

// NewPostgresMethodStore builds a payment-method store backed by PostgreSQL.
func NewPostgresMethodStore(db *pgxpool.Pool) *PostgresMethodStore {
	return &PostgresMethodStore{db: db}
}

const methodColumns = `id, owner_id, external_method_ref, type, brand, last4, exp_month, exp_year, is_default, created_at`

// GetForOwner fetches a payment method only when it belongs to the owner.
func (s *PostgresMethodStore) GetForOwner(ctx context.Context, id, ownerID string) (PaymentMethod, error) {
	row := s.db.QueryRow(ctx, `SELECT `+methodColumns+` FROM payment_methods WHERE id = $1 AND owner_id = $2`, id, ownerID)
	m, err := scanMethod(row)
	if err != nil {
		return PaymentMethod{}, err
	}
	return m, nil
}

// ListByOwner returns the owner's payment methods, default first.
func (s *PostgresMethodStore) ListByOwner(ctx context.Context, ownerID string) ([]PaymentMethod, error) {
	rows, err := s.db.Query(ctx, `SELECT `+methodColumns+` FROM payment_methods
        WHERE owner_id = $1 ORDER BY is_default DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func scanMethod(row pgx.Row) (PaymentMethod, error) {
	var m PaymentMethod
	var createdAt time.Time
	if err := row.Scan(&m.ID, &m.OwnerID, &m.ExternalMethodRef, &m.Type, &m.Brand, &m.Last4, &m.ExpMonth, &m.ExpYear, &m.IsDefault, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentMethod{}, ErrMethodNotFound
		}
		return PaymentMethod{}, err
	}
	m.CreatedAt = createdAt.UTC()
	return m, nil
}
