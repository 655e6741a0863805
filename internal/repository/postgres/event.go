package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"corridor/internal/domain"
)

// EventRepository is a PostgreSQL implementation of repository.EventRepository.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{q: db}
}

// NewEventRepositoryWithTx creates an event repository using a transaction.
func NewEventRepositoryWithTx(tx *sql.Tx) *EventRepository {
	return &EventRepository{q: tx}
}

// Append assigns the next per-order sequence number and persists the event.
// Callers must hold the order row lock so sequences stay gapless.
func (r *EventRepository) Append(ctx context.Context, event *domain.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (id, order_id, seq, type, payload, occurred_at)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5
		FROM payment_events WHERE order_id = $2
		RETURNING seq
	`

	return r.q.QueryRowContext(ctx, query,
		event.ID,
		event.OrderID,
		event.Type,
		event.Payload,
		event.OccurredAt,
	).Scan(&event.Seq)
}

// ListByOrder returns all events for an order in sequence order.
func (r *EventRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.PaymentEvent, error) {
	query := `
		SELECT id, order_id, seq, type, payload, occurred_at, published_at
		FROM payment_events WHERE order_id = $1 ORDER BY seq
	`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListUnpublished returns events not yet delivered to the outbound stream.
func (r *EventRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.PaymentEvent, error) {
	query := `
		SELECT id, order_id, seq, type, payload, occurred_at, published_at
		FROM payment_events WHERE published_at IS NULL
		ORDER BY occurred_at, seq
		LIMIT $1
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkPublished records delivery of the given events.
func (r *EventRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE payment_events SET published_at = $1 WHERE id = ANY($2)`

	_, err := r.q.ExecContext(ctx, query, at, pq.Array(ids))
	return err
}

func scanEvents(rows *sql.Rows) ([]*domain.PaymentEvent, error) {
	var events []*domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		var publishedAt sql.NullTime

		err := rows.Scan(&e.ID, &e.OrderID, &e.Seq, &e.Type, &e.Payload, &e.OccurredAt, &publishedAt)
		if err != nil {
			return nil, err
		}

		e.PublishedAt = publishedAt.Time
		e.Published = publishedAt.Valid

		events = append(events, &e)
	}

	return events, rows.Err()
}
