// Package outbox drains committed payment events to the outbound Redis
// stream. Events are written in the same transaction as the order mutation
// they describe; the relay only delivers what has already committed.
package outbox

import (
	"context"
	"log/slog"
	"time"

	internalredis "corridor/internal/redis"
	"corridor/internal/repository"
)

// Relay polls for unpublished events and publishes them in order.
type Relay struct {
	events    repository.EventRepository
	publisher internalredis.EventPublisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// NewRelay creates a new Relay.
func NewRelay(events repository.EventRepository, publisher internalredis.EventPublisher, logger *slog.Logger) *Relay {
	return &Relay{
		events:    events,
		publisher: publisher,
		logger:    logger,
		batchSize: 100,
		interval:  500 * time.Millisecond,
	}
}

// Run delivers events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain publishes one batch. Delivery is at-least-once: a crash between
// publish and mark re-delivers, and consumers dedupe on (order_id, seq).
func (r *Relay) drain(ctx context.Context) {
	events, err := r.events.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("outbox list unpublished", "err", err)
		return
	}
	if len(events) == 0 {
		return
	}

	published := make([]string, 0, len(events))
	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Error("outbox publish", "event_id", event.ID, "err", err)
			break
		}
		published = append(published, event.ID)
	}

	if len(published) > 0 {
		if err := r.events.MarkPublished(ctx, published, time.Now()); err != nil {
			r.logger.Error("outbox mark published", "err", err)
		}
	}
}
