package domain

import "time"

// LegRole identifies which half of a corridor a provider call serves.
type LegRole string

const (
	LegRoleCollection LegRole = "collection"
	LegRolePayout     LegRole = "payout"
)

// LegAttemptStatus represents the current status of one provider leg attempt.
type LegAttemptStatus string

const (
	LegAttemptPending   LegAttemptStatus = "PENDING"
	LegAttemptSucceeded LegAttemptStatus = "SUCCEEDED"
	LegAttemptFailed    LegAttemptStatus = "FAILED"
)

// ProviderLegAttempt is one call to one external provider for one leg of
// one order. The idempotency key is stable across retries of the same leg.
type ProviderLegAttempt struct {
	ID             string
	OrderID        string
	ProviderID     string
	Role           LegRole
	IdempotencyKey string
	ExternalID     string
	AttemptNumber  int
	Status         LegAttemptStatus
	RequestSnap    string
	ResponseSnap   string
	ErrorCode      string
	ErrorMessage   string
	Retryable      bool

	// ProviderTime is the provider-reported event timestamp, used to
	// discard stale webhook callbacks. Zero when the provider sends none.
	ProviderTime time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
