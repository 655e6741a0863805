package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"corridor/internal/domain"
	"corridor/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `
	id, tenant_id, payment_link_id, payer_contact,
	source_amount, source_currency,
	settled_amount, settled_currency, settled,
	exchange_rate, rate_source, rate_locked_at, rate_locked,
	fee_platform, fee_provider, fee_network, fee_total,
	corridor_source, corridor_dest,
	status, retry_count, failure_code, failure_reason, next_attempt_at,
	created_at, started_at, completed_at
`

// Create persists a new payment order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err := r.q.ExecContext(ctx, query,
		order.ID,
		order.TenantID,
		order.PaymentLinkID,
		order.PayerContact,
		order.SourceAmount,
		order.SourceCurrency,
		order.SettledAmount,
		order.SettledCurrency,
		order.Settled,
		order.ExchangeRate,
		order.RateSource,
		nullTime(order.RateLockedAt),
		order.RateLocked,
		order.Fees.Platform,
		order.Fees.Provider,
		order.Fees.Network,
		order.Fees.Total,
		order.CorridorSource,
		order.CorridorDest,
		order.Status,
		order.RetryCount,
		order.FailureCode,
		order.FailureReason,
		nullTime(order.NextAttemptAt),
		order.CreatedAt,
		nullTime(order.StartedAt),
		nullTime(order.CompletedAt),
	)

	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id = $1`
	return r.scanOrder(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves an order holding its row lock for the duration
// of the surrounding transaction.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id = $1 FOR UPDATE`
	return r.scanOrder(r.q.QueryRowContext(ctx, query, id))
}

// Update persists the mutable fields of an order.
func (r *OrderRepository) Update(ctx context.Context, order *domain.PaymentOrder) error {
	query := `
		UPDATE payment_orders SET
			settled_amount = $1, settled_currency = $2, settled = $3,
			exchange_rate = $4, rate_source = $5, rate_locked_at = $6, rate_locked = $7,
			fee_platform = $8, fee_provider = $9, fee_network = $10, fee_total = $11,
			status = $12, retry_count = $13, failure_code = $14, failure_reason = $15,
			next_attempt_at = $16, started_at = $17, completed_at = $18
		WHERE id = $19
	`

	result, err := r.q.ExecContext(ctx, query,
		order.SettledAmount,
		order.SettledCurrency,
		order.Settled,
		order.ExchangeRate,
		order.RateSource,
		nullTime(order.RateLockedAt),
		order.RateLocked,
		order.Fees.Platform,
		order.Fees.Provider,
		order.Fees.Network,
		order.Fees.Total,
		order.Status,
		order.RetryCount,
		order.FailureCode,
		order.FailureReason,
		nullTime(order.NextAttemptAt),
		nullTime(order.StartedAt),
		nullTime(order.CompletedAt),
		order.ID,
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

// ListDue returns IDs of PROCESSING orders whose next attempt time has passed.
func (r *OrderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM payment_orders
		WHERE status = $1 AND next_attempt_at IS NOT NULL AND next_attempt_at <= $2
		ORDER BY next_attempt_at
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, domain.OrderStatusProcessing, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) scanOrder(row rowScanner) (*domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	var rateLockedAt, nextAttemptAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.TenantID,
		&order.PaymentLinkID,
		&order.PayerContact,
		&order.SourceAmount,
		&order.SourceCurrency,
		&order.SettledAmount,
		&order.SettledCurrency,
		&order.Settled,
		&order.ExchangeRate,
		&order.RateSource,
		&rateLockedAt,
		&order.RateLocked,
		&order.Fees.Platform,
		&order.Fees.Provider,
		&order.Fees.Network,
		&order.Fees.Total,
		&order.CorridorSource,
		&order.CorridorDest,
		&order.Status,
		&order.RetryCount,
		&order.FailureCode,
		&order.FailureReason,
		&nextAttemptAt,
		&order.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	order.RateLockedAt = rateLockedAt.Time
	order.NextAttemptAt = nextAttemptAt.Time
	order.StartedAt = startedAt.Time
	order.CompletedAt = completedAt.Time

	return &order, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
