package postgres

import (
	"context"
	"database/sql"
	"errors"

	"corridor/internal/domain"
	"corridor/internal/repository"
)

// LegAttemptRepository is a PostgreSQL implementation of
// repository.LegAttemptRepository.
type LegAttemptRepository struct {
	q Querier
}

// NewLegAttemptRepository creates a new PostgreSQL leg attempt repository.
func NewLegAttemptRepository(db *sql.DB) *LegAttemptRepository {
	return &LegAttemptRepository{q: db}
}

// NewLegAttemptRepositoryWithTx creates a leg attempt repository using a transaction.
func NewLegAttemptRepositoryWithTx(tx *sql.Tx) *LegAttemptRepository {
	return &LegAttemptRepository{q: tx}
}

const legColumns = `
	id, order_id, provider_id, role, idempotency_key, external_id,
	attempt_number, status, request_snap, response_snap,
	error_code, error_message, retryable, provider_time, created_at, updated_at
`

// Create persists a new leg attempt.
func (r *LegAttemptRepository) Create(ctx context.Context, a *domain.ProviderLegAttempt) error {
	query := `
		INSERT INTO provider_leg_attempts (` + legColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.OrderID,
		a.ProviderID,
		a.Role,
		a.IdempotencyKey,
		a.ExternalID,
		a.AttemptNumber,
		a.Status,
		a.RequestSnap,
		a.ResponseSnap,
		a.ErrorCode,
		a.ErrorMessage,
		a.Retryable,
		nullTime(a.ProviderTime),
		a.CreatedAt,
		a.UpdatedAt,
	)

	return err
}

// Update persists the mutable fields of a leg attempt.
func (r *LegAttemptRepository) Update(ctx context.Context, a *domain.ProviderLegAttempt) error {
	query := `
		UPDATE provider_leg_attempts SET
			external_id = $1, status = $2, response_snap = $3,
			error_code = $4, error_message = $5, retryable = $6,
			provider_time = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := r.q.ExecContext(ctx, query,
		a.ExternalID,
		a.Status,
		a.ResponseSnap,
		a.ErrorCode,
		a.ErrorMessage,
		a.Retryable,
		nullTime(a.ProviderTime),
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetActive retrieves the most recent attempt for one leg of one order.
// Returns nil if the leg has never been attempted.
func (r *LegAttemptRepository) GetActive(ctx context.Context, orderID string, role domain.LegRole) (*domain.ProviderLegAttempt, error) {
	query := `
		SELECT ` + legColumns + `
		FROM provider_leg_attempts
		WHERE order_id = $1 AND role = $2
		ORDER BY attempt_number DESC
		LIMIT 1
	`

	attempt, err := r.scanAttempt(r.q.QueryRowContext(ctx, query, orderID, role))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return attempt, err
}

// GetByExternalID retrieves the attempt a provider callback refers to.
func (r *LegAttemptRepository) GetByExternalID(ctx context.Context, providerID, externalID string) (*domain.ProviderLegAttempt, error) {
	query := `
		SELECT ` + legColumns + `
		FROM provider_leg_attempts
		WHERE provider_id = $1 AND external_id = $2
		ORDER BY attempt_number DESC
		LIMIT 1
	`

	return r.scanAttempt(r.q.QueryRowContext(ctx, query, providerID, externalID))
}

// ListByOrder returns all attempts for an order, oldest first.
func (r *LegAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.ProviderLegAttempt, error) {
	query := `
		SELECT ` + legColumns + `
		FROM provider_leg_attempts
		WHERE order_id = $1
		ORDER BY created_at, attempt_number
	`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.ProviderLegAttempt
	for rows.Next() {
		attempt, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}

func (r *LegAttemptRepository) scanAttempt(row rowScanner) (*domain.ProviderLegAttempt, error) {
	var a domain.ProviderLegAttempt
	var providerTime sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.ProviderID,
		&a.Role,
		&a.IdempotencyKey,
		&a.ExternalID,
		&a.AttemptNumber,
		&a.Status,
		&a.RequestSnap,
		&a.ResponseSnap,
		&a.ErrorCode,
		&a.ErrorMessage,
		&a.Retryable,
		&providerTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	a.ProviderTime = providerTime.Time

	return &a, nil
}
