// Package provider defines the uniform contract over heterogeneous external
// payment providers. Orchestration code depends only on this contract and
// never branches on provider identity.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrorClass classifies a provider failure for retry decisions.
type ErrorClass string

const (
	// ClassRetryable covers timeouts, 5xx responses and rate limits.
	ClassRetryable ErrorClass = "retryable"

	// ClassTerminal covers explicit rejections such as insufficient funds
	// or compliance blocks.
	ClassTerminal ErrorClass = "terminal"

	// ClassAmbiguous covers calls with no definitive provider answer.
	ClassAmbiguous ErrorClass = "ambiguous"
)

var (
	// ErrSignatureInvalid is returned when a callback signature does not
	// verify. The callback is rejected and no state changes.
	ErrSignatureInvalid = errors.New("callback signature verification failed")

	// ErrUnknownProvider is returned when no gateway is registered for the
	// requested corridor leg.
	ErrUnknownProvider = errors.New("no provider registered for corridor leg")
)

// Error is a classified provider failure.
type Error struct {
	Class   ErrorClass
	Code    string
	Message string
}

func (e *Error) Error() string {
	return "provider error [" + e.Code + "]: " + e.Message
}

// Classify returns the error class of err, defaulting to ambiguous for
// errors the gateway could not attribute (network failures, timeouts with
// an in-flight request, unexpected payloads).
func Classify(err error) ErrorClass {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ClassAmbiguous
}

// LegRequest describes one leg transfer to initiate.
type LegRequest struct {
	OrderID   string
	Role      string
	Amount    float64
	Currency  string
	Reference string
}

// ResultOutcome is the accept/reject outcome of an initiate call.
type ResultOutcome string

const (
	OutcomeAccepted ResultOutcome = "accepted"
	OutcomeRejected ResultOutcome = "rejected"
)

// LegResult is the stable result shape crossing the adapter boundary.
type LegResult struct {
	Outcome    ResultOutcome
	ExternalID string
	ErrorCode  string
}

// StatusValue is the provider-reported state of an in-flight leg.
type StatusValue string

const (
	StatusPending   StatusValue = "pending"
	StatusSucceeded StatusValue = "succeeded"
	StatusFailed    StatusValue = "failed"
)

// LegStatus is the stable status shape crossing the adapter boundary.
type LegStatus struct {
	Value     StatusValue
	Detail    string
	ErrorCode string

	// ReportedAt is the provider's own event timestamp when supplied.
	ReportedAt time.Time
}

// CallbackEvent is a verified provider webhook decoded to the abstract shape.
type CallbackEvent struct {
	ExternalID string
	Status     LegStatus
}

// Gateway is the uniform interface over one external payment provider.
type Gateway interface {
	// ID identifies the provider for attempt records and callbacks.
	ID() string

	// Initiate starts a transfer. Calling Initiate twice with the same
	// idempotency key must not create two real-world transfers.
	Initiate(ctx context.Context, req LegRequest, idempotencyKey string) (LegResult, error)

	// CheckStatus polls the provider for the state of a transfer.
	CheckStatus(ctx context.Context, externalID string) (LegStatus, error)

	// Refund reverses a settled transfer. Only invoked through manual
	// intervention resolution.
	Refund(ctx context.Context, externalID string, amount float64) (LegResult, error)

	// VerifyCallback checks the webhook signature and decodes the payload.
	// A verification failure returns ErrSignatureInvalid.
	VerifyCallback(payload []byte, signature string) (CallbackEvent, error)
}
