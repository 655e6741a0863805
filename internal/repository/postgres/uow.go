package postgres

import (
	"context"
	"database/sql"

	"corridor/internal/repository"
)

// UnitOfWork is a PostgreSQL implementation of repository.UnitOfWork.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a unit of work over db.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Within begins a transaction, runs fn with transaction-scoped
// repositories, and commits. Any error from fn rolls back.
func (u *UnitOfWork) Within(ctx context.Context, fn func(tx repository.Tx) error) error {
	sqlTx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&uowTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	return sqlTx.Commit()
}

// uowTx hands out transaction-scoped repositories.
type uowTx struct {
	tx *sql.Tx
}

func (t *uowTx) Orders() repository.OrderRepository {
	return NewOrderRepositoryWithTx(t.tx)
}

func (t *uowTx) Legs() repository.LegAttemptRepository {
	return NewLegAttemptRepositoryWithTx(t.tx)
}

func (t *uowTx) Events() repository.EventRepository {
	return NewEventRepositoryWithTx(t.tx)
}

func (t *uowTx) Cases() repository.InterventionRepository {
	return NewInterventionRepositoryWithTx(t.tx)
}
