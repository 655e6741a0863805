// Package ledger defines the idempotency ledger contract: one recorded
// result per (operation, idempotency-key) pair, so repeated invocations of
// the same logical operation replay the original result instead of
// re-executing side effects.
package ledger

import (
	"context"
	"errors"
	"time"
)

// State of a ledger reservation.
type State string

const (
	// StateNew means the caller holds a fresh reservation and must execute
	// the operation, then Complete or Fail the key.
	StateNew State = "new"

	// StateInProgress means another caller holds the reservation and has
	// not finished executing.
	StateInProgress State = "in_progress"

	// StateCompleted means the operation already executed; the stored
	// result is returned instead of re-executing.
	StateCompleted State = "completed"
)

var (
	// ErrConflict is returned when a key is presented with a payload hash
	// that differs from the one it was reserved with. This is always a
	// programming or integration bug.
	ErrConflict = errors.New("idempotency key reused with different payload")
)

// Reservation is the outcome of presenting an idempotency key.
type Reservation struct {
	State      State
	Result     string
	ReservedAt time.Time
}

// Ledger records one result per idempotency key. Entries for financial
// operations never expire. Completed entries are never mutated.
type Ledger interface {
	// Reserve atomically claims key for execution. If two concurrent
	// callers present the same key, exactly one observes StateNew.
	// payloadHash guards against key reuse with a different payload.
	Reserve(ctx context.Context, key, payloadHash string) (Reservation, error)

	// Complete stores the result for a reserved key.
	Complete(ctx context.Context, key, result string) error

	// Fail releases an in-progress reservation after a definitive failure
	// so a later retry may reserve the key again.
	Fail(ctx context.Context, key string) error

	// Void removes a completed rejection so an operator-sanctioned retry
	// may attempt the operation again under the same key. Accepted results
	// are never voided.
	Void(ctx context.Context, key string) error
}
