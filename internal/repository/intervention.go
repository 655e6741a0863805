package repository

import (
	"context"

	"corridor/internal/domain"
)

// InterventionRepository defines the persistence operations for manual
// intervention cases.
type InterventionRepository interface {
	// Create persists a new intervention case.
	Create(ctx context.Context, c *domain.ManualInterventionCase) error

	// GetByID retrieves a case by ID.
	GetByID(ctx context.Context, id string) (*domain.ManualInterventionCase, error)

	// GetOpenByOrder retrieves the open (pending or in-progress) case for
	// an order. Returns nil if none is open.
	GetOpenByOrder(ctx context.Context, orderID string) (*domain.ManualInterventionCase, error)

	// Update persists the mutable fields of a case.
	Update(ctx context.Context, c *domain.ManualInterventionCase) error

	// ListOpen returns all open cases, highest priority and oldest first.
	ListOpen(ctx context.Context) ([]*domain.ManualInterventionCase, error)
}
