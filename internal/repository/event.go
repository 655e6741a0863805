package repository

import (
	"context"
	"time"

	"corridor/internal/domain"
)

// EventRepository defines the append-only event log operations.
type EventRepository interface {
	// Append assigns the next per-order sequence number and persists the
	// event. Callers must hold the order row lock so sequences stay gapless.
	Append(ctx context.Context, event *domain.PaymentEvent) error

	// ListByOrder returns all events for an order in sequence order.
	ListByOrder(ctx context.Context, orderID string) ([]*domain.PaymentEvent, error)

	// ListUnpublished returns events not yet delivered to the outbound
	// stream, oldest first, capped at limit.
	ListUnpublished(ctx context.Context, limit int) ([]*domain.PaymentEvent, error)

	// MarkPublished records delivery of the given events.
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}
