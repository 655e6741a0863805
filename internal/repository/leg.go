package repository

import (
	"context"

	"corridor/internal/domain"
)

// LegAttemptRepository defines the persistence operations for provider
// leg attempts.
type LegAttemptRepository interface {
	// Create persists a new leg attempt.
	Create(ctx context.Context, attempt *domain.ProviderLegAttempt) error

	// Update persists the mutable fields of a leg attempt.
	Update(ctx context.Context, attempt *domain.ProviderLegAttempt) error

	// GetActive retrieves the most recent attempt for one leg of one order.
	// Returns nil if the leg has never been attempted.
	GetActive(ctx context.Context, orderID string, role domain.LegRole) (*domain.ProviderLegAttempt, error)

	// GetByExternalID retrieves the attempt a provider callback refers to.
	GetByExternalID(ctx context.Context, providerID, externalID string) (*domain.ProviderLegAttempt, error)

	// ListByOrder returns all attempts for an order, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]*domain.ProviderLegAttempt, error)
}
