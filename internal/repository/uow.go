package repository

import "context"

// Tx groups the repositories participating in one atomic unit of work.
// A state transition, its event append, and any case or attempt writes
// commit together or not at all.
type Tx interface {
	Orders() OrderRepository
	Legs() LegAttemptRepository
	Events() EventRepository
	Cases() InterventionRepository
}

// UnitOfWork runs a function within one database transaction.
type UnitOfWork interface {
	// Within begins a transaction, runs fn, and commits. Any error from fn
	// rolls the transaction back and is returned.
	Within(ctx context.Context, fn func(tx Tx) error) error
}
