package domain

import "time"

// OrderStatus represents the current status of a payment order.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
	OrderStatusRequiresAction  OrderStatus = "REQUIRES_ACTION"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRefunded        OrderStatus = "REFUNDED"
)

// TransitionEvent is a trigger that may move an order between statuses.
type TransitionEvent string

const (
	EventPaymentInitiated  TransitionEvent = "payment_initiated"
	EventProcessingStarted TransitionEvent = "processing_started"
	EventOrderCompleted    TransitionEvent = "order_completed"
	EventOrderFailed       TransitionEvent = "order_failed"
	EventActionRequired    TransitionEvent = "action_required"
	EventProcessingResumed TransitionEvent = "processing_resumed"
	EventOrderCancelled    TransitionEvent = "order_cancelled"
	EventOrderRefunded     TransitionEvent = "order_refunded"
)

// FeeBreakdown is the immutable fee decomposition stored at rate-lock time.
type FeeBreakdown struct {
	Platform float64
	Provider float64
	Network  float64
	Total    float64
}

// PaymentOrder represents one attempted movement of value across a corridor.
type PaymentOrder struct {
	ID             string
	TenantID       string
	PaymentLinkID  string
	PayerContact   string
	SourceAmount   float64
	SourceCurrency string

	// Set if and only if the order reached COMPLETED (or REFUNDED after it).
	SettledAmount   float64
	SettledCurrency string
	Settled         bool

	ExchangeRate float64
	RateSource   string
	RateLockedAt time.Time
	RateLocked   bool
	Fees         FeeBreakdown

	CorridorSource string
	CorridorDest   string

	Status        OrderStatus
	RetryCount    int
	FailureCode   string
	FailureReason string
	NextAttemptAt time.Time

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// transitions is the legal (status, event) -> status table.
var transitions = map[OrderStatus]map[TransitionEvent]OrderStatus{
	OrderStatusCreated: {
		EventPaymentInitiated: OrderStatusAwaitingPayment,
		EventOrderCancelled:   OrderStatusCancelled,
	},
	OrderStatusAwaitingPayment: {
		EventProcessingStarted: OrderStatusProcessing,
		EventOrderCancelled:    OrderStatusCancelled,
	},
	OrderStatusProcessing: {
		EventOrderCompleted: OrderStatusCompleted,
		EventOrderFailed:    OrderStatusFailed,
		EventActionRequired: OrderStatusRequiresAction,
	},
	OrderStatusRequiresAction: {
		EventProcessingResumed: OrderStatusProcessing,
		EventOrderCompleted:    OrderStatusCompleted,
		EventOrderFailed:       OrderStatusFailed,
	},
	OrderStatusCompleted: {
		EventOrderRefunded: OrderStatusRefunded,
	},
}

// Transition returns the status that results from applying event to current.
// Illegal combinations return ErrInvalidTransition and change nothing.
func Transition(current OrderStatus, event TransitionEvent) (OrderStatus, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, ErrInvalidTransition
}

// IsTerminal reports whether status admits no further automated transitions.
// COMPLETED is terminal except for the explicit refund path.
func IsTerminal(status OrderStatus) bool {
	switch status {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Cancellable reports whether the order may still be cancelled directly.
// Once a provider leg has been initiated, cancellation goes through
// manual intervention instead.
func Cancellable(status OrderStatus) bool {
	return status == OrderStatusCreated || status == OrderStatusAwaitingPayment
}
