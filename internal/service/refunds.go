package service

import (
	"context"

	"corridor/internal/domain"
	"corridor/internal/provider"
	"corridor/internal/repository"
)

// RefundOrder reverses a completed order through the collection provider
// and moves it to REFUNDED. This is the only path out of COMPLETED.
func (o *Orchestrator) RefundOrder(ctx context.Context, orderID, reason string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}

	acquired, err := o.locks.AcquireOrderLock(ctx, orderID, o.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrOrderBusy
	}
	defer func() {
		_ = o.locks.ReleaseOrderLock(context.WithoutCancel(ctx), orderID)
	}()

	order, err := o.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusCompleted {
		return ErrOrderNotRefundable
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

	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, err := domain.Transition(order.Status, domain.EventOrderRefunded)
		if err != nil {
			return err
		}
		order.Status = next

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeRefunded, map[string]any{
			"reason":      reason,
			"provider_id": attempt.ProviderID,
			"external_id": attempt.ExternalID,
		})
	})
}
