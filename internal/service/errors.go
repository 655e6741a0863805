package service

import "errors"

var (
	// ErrInvalidOrderID is returned when an order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidAmount is returned when a source amount is not positive.
	ErrInvalidAmount = errors.New("invalid source amount")

	// ErrInvalidCurrency is returned when a currency code is empty.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrInvalidTenantID is returned when a tenant ID is empty.
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// ErrUnknownCorridor is returned when no route is configured for the
	// requested currency pair.
	ErrUnknownCorridor = errors.New("no route configured for corridor")

	// ErrOrderNotCancellable is returned when cancellation is requested
	// after a provider leg has been initiated. Such orders go through
	// manual intervention instead.
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled directly")

	// ErrOrderNotRefundable is returned when a refund is requested for an
	// order that never completed.
	ErrOrderNotRefundable = errors.New("order is not in a refundable state")

	// ErrOrderBusy is returned when another step currently holds the
	// per-order lock. Callers retry on the next scheduler pass.
	ErrOrderBusy = errors.New("order is being processed by another step")

	// ErrInvalidCaseID is returned when a case ID is empty.
	ErrInvalidCaseID = errors.New("invalid case id")

	// ErrCaseAlreadyResolved is returned when resolving a case that is no
	// longer open.
	ErrCaseAlreadyResolved = errors.New("intervention case already resolved")

	// ErrInvalidResolution is returned for a resolution action outside the
	// allowed enum.
	ErrInvalidResolution = errors.New("invalid resolution action")

	// ErrStaleCallback marks a webhook reporting an older provider
	// timestamp than one already applied. Stale callbacks are ignored
	// and acknowledged so the provider does not redeliver them.
	ErrStaleCallback = errors.New("callback is older than last applied provider status")
)
