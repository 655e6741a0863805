package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"corridor/internal/domain"
	"corridor/internal/provider"
	"corridor/internal/repository"
)

// InterventionService is the manual intervention queue: it lists open
// cases and applies operator resolutions. Every resolution re-enters the
// same transition function the automated flow uses, so the audit trail is
// uniform regardless of who drove the decision.
type InterventionService struct {
	orchestrator *Orchestrator
	caseRepo     repository.InterventionRepository
	logger       *slog.Logger
}

// NewInterventionService creates a new InterventionService.
func NewInterventionService(orchestrator *Orchestrator, caseRepo repository.InterventionRepository, logger *slog.Logger) *InterventionService {
	return &InterventionService{
		orchestrator: orchestrator,
		caseRepo:     caseRepo,
		logger:       logger,
	}
}

// ListOpen returns all open cases, highest priority first.
func (s *InterventionService) ListOpen(ctx context.Context) ([]*domain.ManualInterventionCase, error) {
	return s.caseRepo.ListOpen(ctx)
}

// GetCase retrieves a case by ID.
func (s *InterventionService) GetCase(ctx context.Context, caseID string) (*domain.ManualInterventionCase, error) {
	if caseID == "" {
		return nil, ErrInvalidCaseID
	}
	return s.caseRepo.GetByID(ctx, caseID)
}

// ResolveRequest carries one operator decision for one case.
type ResolveRequest struct {
	CaseID   string
	Action   domain.ResolutionAction
	Notes    string
	Operator string
}

// Resolve applies an operator decision to a case. The action set is a
// closed enum; free-form state mutation is not offered.
func (s *InterventionService) Resolve(ctx context.Context, req ResolveRequest) error {
	if req.CaseID == "" {
		return ErrInvalidCaseID
	}
	if !domain.ValidResolution(req.Action) {
		return ErrInvalidResolution
	}

	c, err := s.caseRepo.GetByID(ctx, req.CaseID)
	if err != nil {
		return err
	}
	if c.Status == domain.CaseStatusResolved || c.Status == domain.CaseStatusCancelled {
		return ErrCaseAlreadyResolved
	}

	o := s.orchestrator
	acquired, err := o.locks.AcquireOrderLock(ctx, c.OrderID, o.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrOrderBusy
	}
	defer func() {
		_ = o.locks.ReleaseOrderLock(context.WithoutCancel(ctx), c.OrderID)
	}()

	// The refund action reverses the collection leg before any state
	// change; a refund the provider rejects leaves the case open.
	if req.Action == domain.ResolutionRefund {
		if err := s.refundCollectionLeg(ctx, c.OrderID); err != nil {
			return err
		}
	}

	if err := s.applyResolution(ctx, c, req); err != nil {
		return err
	}

	s.logger.Info("intervention case resolved",
		"case_id", c.ID,
		"order_id", c.OrderID,
		"action", string(req.Action),
		"operator", req.Operator,
	)

	// A retry decision hands the order straight back to the saga. Any
	// terminally rejected leg key is voided first so the saga may attempt
	// the leg again under the operator's authorization.
	if req.Action == domain.ResolutionRetry {
		if err := s.voidRejectedLegs(ctx, c.OrderID); err != nil {
			return err
		}
		return o.advanceLocked(ctx, c.OrderID)
	}

	return nil
}

// voidRejectedLegs releases the ledger keys of terminally rejected leg
// attempts. Accepted legs keep their entries; they are never re-run.
func (s *InterventionService) voidRejectedLegs(ctx context.Context, orderID string) error {
	o := s.orchestrator

	for _, role := range []domain.LegRole{domain.LegRoleCollection, domain.LegRolePayout} {
		attempt, err := o.legRepo.GetActive(ctx, orderID, role)
		if err != nil {
			return err
		}
		if attempt == nil || attempt.Status != domain.LegAttemptFailed || attempt.Retryable {
			continue
		}
		if err := o.ledger.Void(ctx, attempt.IdempotencyKey); err != nil {
			return err
		}
	}

	return nil
}

// applyResolution commits the case closure, the order transition, and the
// ResolvedByOperator event in one atomic unit.
func (s *InterventionService) applyResolution(ctx context.Context, c *domain.ManualInterventionCase, req ResolveRequest) error {
	o := s.orchestrator

	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, c.OrderID)
		if err != nil {
			return err
		}

		if err := o.appendEvent(ctx, tx, order.ID, domain.EventTypeResolvedByOperator, map[string]any{
			"case_id":  c.ID,
			"action":   string(req.Action),
			"operator": req.Operator,
		}); err != nil {
			return err
		}

		switch req.Action {
		case domain.ResolutionRetry:
			next, err := domain.Transition(order.Status, domain.EventProcessingResumed)
			if err != nil {
				return err
			}
			order.Status = next
			order.RetryCount = 0
			order.FailureCode = ""
			order.FailureReason = ""
			order.NextAttemptAt = time.Now()

		case domain.ResolutionForceComplete:
			next, err := domain.Transition(order.Status, domain.EventOrderCompleted)
			if err != nil {
				return err
			}
			order.Status = next
			order.SettledAmount = SettledAmount(order)
			order.SettledCurrency = order.CorridorDest
			order.Settled = true
			order.NextAttemptAt = time.Time{}
			order.CompletedAt = time.Now()

			if err := o.appendEvent(ctx, tx, order.ID, domain.EventTypeCompleted, map[string]any{
				"settled_amount":   order.SettledAmount,
				"settled_currency": order.SettledCurrency,
				"case_id":          c.ID,
			}); err != nil {
				return err
			}

		case domain.ResolutionForceFail, domain.ResolutionRefund, domain.ResolutionCancel:
			next, err := domain.Transition(order.Status, domain.EventOrderFailed)
			if err != nil {
				return err
			}
			order.Status = next
			order.FailureCode = failureCodeFor(req.Action)
			order.FailureReason = req.Notes
			order.NextAttemptAt = time.Time{}
			order.CompletedAt = time.Now()

			if err := o.appendEvent(ctx, tx, order.ID, domain.EventTypeFailed, map[string]any{
				"error_code": order.FailureCode,
				"case_id":    c.ID,
			}); err != nil {
				return err
			}
		}

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		c.Status = domain.CaseStatusResolved
		c.ResolutionNotes = req.Notes
		c.AssignedTo = req.Operator
		c.ResolvedAt = time.Now()

		return tx.Cases().Update(ctx, c)
	})
}

// refundCollectionLeg asks the collection provider to reverse leg 1.
func (s *InterventionService) refundCollectionLeg(ctx context.Context, orderID string) error {
	o := s.orchestrator

	order, err := o.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	attempt, err := o.legRepo.GetActive(ctx, orderID, domain.LegRoleCollection)
	if err != nil {
		return err
	}
	if attempt == nil || attempt.Status != domain.LegAttemptSucceeded {
		return ErrOrderNotRefundable
	}

	gateway, err := o.providers.Get(attempt.ProviderID)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	result, err := gateway.Refund(callCtx, attempt.ExternalID, order.SourceAmount)
	if err != nil {
		return err
	}
	if result.Outcome != provider.OutcomeAccepted {
		return &provider.Error{Class: provider.ClassTerminal, Code: result.ErrorCode, Message: "refund rejected"}
	}

	snap, _ := json.Marshal(result)
	attempt.ResponseSnap = string(snap)
	attempt.UpdatedAt = time.Now()
	return o.legRepo.Update(ctx, attempt)
}

func failureCodeFor(action domain.ResolutionAction) string {
	switch action {
	case domain.ResolutionRefund:
		return "refunded_by_operator"
	case domain.ResolutionCancel:
		return "cancelled_by_operator"
	default:
		return "failed_by_operator"
	}
}
