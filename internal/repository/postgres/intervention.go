package postgres

import (
	"context"
	"database/sql"
	"errors"

	"corridor/internal/domain"
	"corridor/internal/repository"
)

// InterventionRepository is a PostgreSQL implementation of
// repository.InterventionRepository.
type InterventionRepository struct {
	q Querier
}

// NewInterventionRepository creates a new PostgreSQL intervention repository.
func NewInterventionRepository(db *sql.DB) *InterventionRepository {
	return &InterventionRepository{q: db}
}

// NewInterventionRepositoryWithTx creates an intervention repository using a transaction.
func NewInterventionRepositoryWithTx(tx *sql.Tx) *InterventionRepository {
	return &InterventionRepository{q: tx}
}

const caseColumns = `
	id, order_id, reason, detail, assigned_to, priority, status,
	resolution_notes, due_by, created_at, resolved_at
`

// Create persists a new intervention case.
func (r *InterventionRepository) Create(ctx context.Context, c *domain.ManualInterventionCase) error {
	query := `
		INSERT INTO intervention_cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.OrderID,
		c.Reason,
		c.Detail,
		c.AssignedTo,
		c.Priority,
		c.Status,
		c.ResolutionNotes,
		nullTime(c.DueBy),
		c.CreatedAt,
		nullTime(c.ResolvedAt),
	)

	return err
}

// GetByID retrieves a case by ID.
func (r *InterventionRepository) GetByID(ctx context.Context, id string) (*domain.ManualInterventionCase, error) {
	query := `SELECT ` + caseColumns + ` FROM intervention_cases WHERE id = $1`
	return r.scanCase(r.q.QueryRowContext(ctx, query, id))
}

// GetOpenByOrder retrieves the open case for an order, or nil if none.
func (r *InterventionRepository) GetOpenByOrder(ctx context.Context, orderID string) (*domain.ManualInterventionCase, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM intervention_cases
		WHERE order_id = $1 AND status IN ($2, $3)
		LIMIT 1
	`

	c, err := r.scanCase(r.q.QueryRowContext(ctx, query, orderID, domain.CaseStatusPending, domain.CaseStatusInProgress))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// Update persists the mutable fields of a case.
func (r *InterventionRepository) Update(ctx context.Context, c *domain.ManualInterventionCase) error {
	query := `
		UPDATE intervention_cases SET
			assigned_to = $1, priority = $2, status = $3,
			resolution_notes = $4, due_by = $5, resolved_at = $6
		WHERE id = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		c.AssignedTo,
		c.Priority,
		c.Status,
		c.ResolutionNotes,
		nullTime(c.DueBy),
		nullTime(c.ResolvedAt),
		c.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListOpen returns all open cases, highest priority and oldest first.
func (r *InterventionRepository) ListOpen(ctx context.Context) ([]*domain.ManualInterventionCase, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM intervention_cases
		WHERE status IN ($1, $2)
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, created_at
	`

	rows, err := r.q.QueryContext(ctx, query, domain.CaseStatusPending, domain.CaseStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.ManualInterventionCase
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

func (r *InterventionRepository) scanCase(row rowScanner) (*domain.ManualInterventionCase, error) {
	var c domain.ManualInterventionCase
	var dueBy, resolvedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.OrderID,
		&c.Reason,
		&c.Detail,
		&c.AssignedTo,
		&c.Priority,
		&c.Status,
		&c.ResolutionNotes,
		&dueBy,
		&c.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	c.DueBy = dueBy.Time
	c.ResolvedAt = resolvedAt.Time

	return &c, nil
}
