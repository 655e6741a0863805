package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"corridor/internal/domain"
	"corridor/internal/provider"
	"corridor/internal/repository"
)

// HandleCallback ingests a signed provider webhook. The signature must
// verify before anything else happens; a verification failure changes no
// state. A verified terminal callback is authoritative over polling and
// reconciles the leg attempt, then progresses the saga. Returns the order
// ID the callback applied to.
func (o *Orchestrator) HandleCallback(ctx context.Context, providerID string, payload []byte, signature string) (string, error) {
	gateway, err := o.providers.Get(providerID)
	if err != nil {
		return "", err
	}

	event, err := gateway.VerifyCallback(payload, signature)
	if err != nil {
		return "", err
	}

	attempt, err := o.legRepo.GetByExternalID(ctx, providerID, event.ExternalID)
	if err != nil {
		return "", err
	}

	acquired, err := o.locks.AcquireOrderLock(ctx, attempt.OrderID, o.cfg.LockTTL)
	if err != nil {
		return "", err
	}
	if !acquired {
		return attempt.OrderID, ErrOrderBusy
	}
	defer func() {
		_ = o.locks.ReleaseOrderLock(context.WithoutCancel(ctx), attempt.OrderID)
	}()

	if err := o.applyCallback(ctx, attempt, event); err != nil {
		if errors.Is(err, ErrStaleCallback) {
			// Already superseded by a newer provider status. Acknowledge
			// so the provider stops redelivering it.
			return attempt.OrderID, nil
		}
		return attempt.OrderID, err
	}

	switch event.Status.Value {
	case provider.StatusPending:
		return attempt.OrderID, nil
	case provider.StatusFailed:
		return attempt.OrderID, o.resolveFailedCallback(ctx, attempt)
	}

	return attempt.OrderID, o.advanceLocked(ctx, attempt.OrderID)
}

// resolveFailedCallback applies the saga consequence of a terminal webhook
// failure: a failed collection fails the order, a failed payout strands
// collected funds and escalates.
func (o *Orchestrator) resolveFailedCallback(ctx context.Context, attempt *domain.ProviderLegAttempt) error {
	order, err := o.orderRepo.GetByID(ctx, attempt.OrderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusProcessing {
		return nil
	}

	out := legOutcome{kind: legTerminal, code: attempt.ErrorCode, message: attempt.ErrorMessage}
	if attempt.Role == domain.LegRolePayout {
		return o.escalate(ctx, attempt.OrderID, domain.ReasonLeg2FailedAfterLeg1, out)
	}
	return o.failOrder(ctx, attempt.OrderID, out.code, out.message)
}

// applyCallback reconciles one leg attempt with a verified callback.
// Last authoritative status wins, keyed by the provider-reported timestamp
// when available, otherwise by arrival order.
func (o *Orchestrator) applyCallback(ctx context.Context, attempt *domain.ProviderLegAttempt, event provider.CallbackEvent) error {
	order, err := o.orderRepo.GetByID(ctx, attempt.OrderID)
	if err != nil {
		return err
	}

	// Attempts are never mutated after the order reaches a terminal state.
	if domain.IsTerminal(order.Status) {
		return nil
	}

	if !event.Status.ReportedAt.IsZero() && !attempt.ProviderTime.IsZero() &&
		event.Status.ReportedAt.Before(attempt.ProviderTime) {
		return ErrStaleCallback
	}

	key := attempt.IdempotencyKey

	switch event.Status.Value {
	case provider.StatusSucceeded:
		result := provider.LegResult{Outcome: provider.OutcomeAccepted, ExternalID: event.ExternalID}
		stored, _ := json.Marshal(result)
		if err := o.completeLedgerEntry(ctx, key, string(stored)); err != nil {
			return err
		}
		attempt.ProviderTime = event.Status.ReportedAt
		if attempt.Status != domain.LegAttemptSucceeded {
			return o.recordLegSuccess(ctx, attempt, result)
		}
		return nil

	case provider.StatusFailed:
		// Webhook delivery is at-least-once; a redelivered failure is
		// acknowledged without another audit row.
		if attempt.Status == domain.LegAttemptFailed && attempt.ErrorCode == event.Status.ErrorCode {
			return nil
		}

		stored, _ := json.Marshal(provider.LegResult{
			Outcome:   provider.OutcomeRejected,
			ErrorCode: event.Status.ErrorCode,
		})
		if err := o.completeLedgerEntry(ctx, key, string(stored)); err != nil {
			return err
		}

		return o.uow.Within(ctx, func(tx repository.Tx) error {
			if _, err := tx.Orders().GetByIDForUpdate(ctx, attempt.OrderID); err != nil {
				return err
			}

			attempt.Status = domain.LegAttemptFailed
			attempt.ErrorCode = event.Status.ErrorCode
			attempt.ErrorMessage = event.Status.Detail
			attempt.Retryable = false
			attempt.ProviderTime = event.Status.ReportedAt
			attempt.UpdatedAt = time.Now()

			if err := tx.Legs().Update(ctx, attempt); err != nil {
				return err
			}

			return o.appendEvent(ctx, tx, attempt.OrderID, domain.EventTypeLegAttemptFailed, map[string]any{
				"provider_id": attempt.ProviderID,
				"role":        string(attempt.Role),
				"attempt":     attempt.AttemptNumber,
				"error_code":  event.Status.ErrorCode,
				"retryable":   false,
				"source":      "webhook",
			})
		})

	default:
		// Still pending on the provider side; record the timestamp only.
		attempt.ProviderTime = event.Status.ReportedAt
		attempt.UpdatedAt = time.Now()
		return o.legRepo.Update(ctx, attempt)
	}
}

// completeLedgerEntry finalizes an in-progress ledger entry from a
// callback (the initiate call crashed or timed out mid-flight). An entry
// that already completed keeps its original result untouched; the attempt
// row and event log carry the authoritative webhook status.
func (o *Orchestrator) completeLedgerEntry(ctx context.Context, key, stored string) error {
	err := o.ledger.Complete(ctx, key, stored)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
