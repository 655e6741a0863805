package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"corridor/internal/ledger"
	"corridor/internal/repository"
)

// LedgerStore is a PostgreSQL implementation of ledger.Ledger. Entries are
// append-mostly: completed entries are never mutated, and financial keys
// never expire.
type LedgerStore struct {
	q Querier
}

// NewLedgerStore creates a new PostgreSQL idempotency ledger.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{q: db}
}

// NewLedgerStoreWithTx creates a ledger using a transaction.
func NewLedgerStoreWithTx(tx *sql.Tx) *LedgerStore {
	return &LedgerStore{q: tx}
}

// Reserve atomically claims key for execution. Exactly one of any set of
// concurrent callers observes StateNew; the rest observe the stored entry.
func (s *LedgerStore) Reserve(ctx context.Context, key, payloadHash string) (ledger.Reservation, error) {
	insert := `
		INSERT INTO idempotency_ledger (key, payload_hash, state, reserved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`

	now := time.Now()
	result, err := s.q.ExecContext(ctx, insert, key, payloadHash, ledger.StateInProgress, now)
	if err != nil {
		return ledger.Reservation{}, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return ledger.Reservation{}, err
	}

	if inserted == 1 {
		return ledger.Reservation{State: ledger.StateNew, ReservedAt: now}, nil
	}

	// Key already reserved: replay the stored entry.
	query := `SELECT payload_hash, state, result, reserved_at FROM idempotency_ledger WHERE key = $1`

	var storedHash string
	var state ledger.State
	var storedResult sql.NullString
	var reservedAt time.Time

	err = s.q.QueryRowContext(ctx, query, key).Scan(&storedHash, &state, &storedResult, &reservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Reservation{}, repository.ErrNotFound
		}
		return ledger.Reservation{}, err
	}

	if storedHash != payloadHash {
		return ledger.Reservation{}, ledger.ErrConflict
	}

	return ledger.Reservation{State: state, Result: storedResult.String, ReservedAt: reservedAt}, nil
}

// Complete stores the result for a reserved key.
func (s *LedgerStore) Complete(ctx context.Context, key, result string) error {
	query := `
		UPDATE idempotency_ledger
		SET state = $1, result = $2, completed_at = $3
		WHERE key = $4 AND state = $5
	`

	res, err := s.q.ExecContext(ctx, query, ledger.StateCompleted, result, time.Now(), key, ledger.StateInProgress)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Fail releases an in-progress reservation after a definitive failure so a
// later retry may reserve the key again.
func (s *LedgerStore) Fail(ctx context.Context, key string) error {
	query := `DELETE FROM idempotency_ledger WHERE key = $1 AND state = $2`

	_, err := s.q.ExecContext(ctx, query, key, ledger.StateInProgress)
	return err
}

// Void removes a completed rejection so an operator-sanctioned retry may
// attempt the operation again. Accepted results are never voided.
func (s *LedgerStore) Void(ctx context.Context, key string) error {
	query := `
		DELETE FROM idempotency_ledger
		WHERE key = $1 AND state = $2
		AND result::jsonb ->> 'Outcome' IS DISTINCT FROM 'accepted'
	`

	_, err := s.q.ExecContext(ctx, query, key, ledger.StateCompleted)
	return err
}
