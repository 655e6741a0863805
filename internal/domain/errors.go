package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a (status, event) pair has no
	// legal target status. This is always a programming or integration bug.
	ErrInvalidTransition = errors.New("invalid order status transition")
)
