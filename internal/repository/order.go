package repository

import (
	"context"
	"time"

	"corridor/internal/domain"
)

// OrderRepository defines the persistence operations for payment orders.
type OrderRepository interface {
	// Create persists a new payment order.
	Create(ctx context.Context, order *domain.PaymentOrder) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.PaymentOrder, error)

	// GetByIDForUpdate retrieves an order by ID holding its row lock for
	// the duration of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.PaymentOrder, error)

	// Update persists the mutable fields of an order.
	Update(ctx context.Context, order *domain.PaymentOrder) error

	// ListDue returns IDs of PROCESSING orders whose next attempt time has
	// passed, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
