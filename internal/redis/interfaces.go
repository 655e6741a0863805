package redis

import (
	"context"
	"time"

	"corridor/internal/domain"
)

// OrderLocker defines the interface for per-order distributed locking.
type OrderLocker interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID string) error
}

// EventPublisher defines the interface for the outbound event stream.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.PaymentEvent) error
}

// Ensure concrete types implement interfaces.
var (
	_ OrderLocker    = (*LockStore)(nil)
	_ EventPublisher = (*StreamPublisher)(nil)
)
