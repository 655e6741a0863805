package domain

import "time"

// EventType identifies the kind of fact recorded about an order.
type EventType string

const (
	EventTypeCreated            EventType = "PaymentOrder.Created"
	EventTypeProcessing         EventType = "PaymentOrder.Processing"
	EventTypeLeg1Succeeded      EventType = "PaymentOrder.Leg1Succeeded"
	EventTypeLeg2Succeeded      EventType = "PaymentOrder.Leg2Succeeded"
	EventTypeLegAttemptFailed   EventType = "PaymentOrder.LegAttemptFailed"
	EventTypeRetryScheduled     EventType = "PaymentOrder.RetryScheduled"
	EventTypeCompleted          EventType = "PaymentOrder.Completed"
	EventTypeFailed             EventType = "PaymentOrder.Failed"
	EventTypeRequiresAction     EventType = "PaymentOrder.RequiresAction"
	EventTypeRefunded           EventType = "PaymentOrder.Refunded"
	EventTypeCancelled          EventType = "PaymentOrder.Cancelled"
	EventTypeResolvedByOperator EventType = "PaymentOrder.ResolvedByOperator"
)

// PaymentEvent is an immutable, per-order-sequenced fact about an order.
// (OrderID, Seq) is unique and sequences have no gaps for a given order.
// Events are the audit trail and are never updated or deleted; PublishedAt
// is a delivery marker set by the outbox relay, not part of the fact.
type PaymentEvent struct {
	ID          string
	OrderID     string
	Seq         int64
	Type        EventType
	Payload     string
	OccurredAt  time.Time
	PublishedAt time.Time
	Published   bool
}
