package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"corridor/internal/domain"
)

// DefaultEventStream is the Redis Stream downstream consumers
// (notifications, webhook delivery, dashboards) read payment events from.
const DefaultEventStream = "corridor:payment-events"

// StreamPublisher publishes payment events to a durable Redis Stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher creates a publisher for the given stream.
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamPublisher{client: client, stream: stream}
}

// Publish appends one event to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, event *domain.PaymentEvent) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":    event.ID,
			"order_id":    event.OrderID,
			"seq":         event.Seq,
			"type":        string(event.Type),
			"payload":     event.Payload,
			"occurred_at": event.OccurredAt.UnixMilli(),
		},
	}).Err()
}
