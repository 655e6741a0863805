package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"corridor/internal/config"
	"corridor/internal/domain"
	"corridor/internal/ledger"
	"corridor/internal/provider"
	internalredis "corridor/internal/redis"
	"corridor/internal/repository"
)

// Orchestrator drives payment orders from AWAITING_PAYMENT to a terminal
// state by sequencing the two corridor legs, deciding retry vs escalate on
// failure, and recording every step on the event log. All mutations to one
// order happen under that order's distributed lock; different orders
// proceed fully in parallel.
type Orchestrator struct {
	uow       repository.UnitOfWork
	orderRepo repository.OrderRepository
	legRepo   repository.LegAttemptRepository
	caseRepo  repository.InterventionRepository
	ledger    ledger.Ledger
	providers *provider.Registry
	routing   *domain.RoutingTable
	rates     *RateService
	locks     internalredis.OrderLocker
	cfg       config.SagaConfig
	logger    *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	uow repository.UnitOfWork,
	orderRepo repository.OrderRepository,
	legRepo repository.LegAttemptRepository,
	caseRepo repository.InterventionRepository,
	idemLedger ledger.Ledger,
	providers *provider.Registry,
	routing *domain.RoutingTable,
	rates *RateService,
	locks internalredis.OrderLocker,
	cfg config.SagaConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		uow:       uow,
		orderRepo: orderRepo,
		legRepo:   legRepo,
		caseRepo:  caseRepo,
		ledger:    idemLedger,
		providers: providers,
		routing:   routing,
		rates:     rates,
		locks:     locks,
		cfg:       cfg,
		logger:    logger,
	}
}

// Advance acquires the order lock and progresses the order as far as it can
// without waiting on external settlement. Long waits release the lock; the
// scheduler or an inbound webhook re-invokes.
func (o *Orchestrator) Advance(ctx context.Context, orderID string) error {
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

	return o.advanceLocked(ctx, orderID)
}

// legOutcomeKind classifies the result of driving one leg.
type legOutcomeKind int

const (
	legSucceeded legOutcomeKind = iota
	legRetryable
	legTerminal
)

// legOutcome is the result of one attempt to drive one leg.
type legOutcome struct {
	kind    legOutcomeKind
	code    string
	message string
}

// advanceLocked runs the saga steps for an order. Callers hold the order lock.
func (o *Orchestrator) advanceLocked(ctx context.Context, orderID string) error {
	order, err := o.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == domain.OrderStatusAwaitingPayment {
		if err := o.startProcessing(ctx, orderID); err != nil {
			return err
		}
		order, err = o.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
	}

	if order.Status != domain.OrderStatusProcessing {
		return nil
	}

	route, ok := o.routing.Lookup(order.CorridorSource, order.CorridorDest)
	if !ok {
		return ErrUnknownCorridor
	}

	// Leg 1: collect in the origin country.
	out, err := o.runLeg(ctx, order, route.CollectionProvider, domain.LegRoleCollection,
		order.SourceAmount, order.SourceCurrency)
	if err != nil {
		return err
	}

	switch out.kind {
	case legTerminal:
		return o.failOrder(ctx, order.ID, out.code, out.message)
	case legRetryable:
		return o.scheduleRetry(ctx, order.ID, domain.LegRoleCollection, out)
	}

	// Leg 2: pay out in the destination country.
	order, err = o.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	out, err = o.runLeg(ctx, order, route.PayoutProvider, domain.LegRolePayout,
		SettledAmount(order), order.CorridorDest)
	if err != nil {
		return err
	}

	switch out.kind {
	case legTerminal:
		// The compensation branch: funds are held in the origin leg but
		// cannot be delivered. Reversal needs human sign-off.
		return o.escalate(ctx, order.ID, domain.ReasonLeg2FailedAfterLeg1, out)
	case legRetryable:
		return o.scheduleRetry(ctx, order.ID, domain.LegRolePayout, out)
	}

	return o.completeOrder(ctx, order.ID)
}

// startProcessing moves the order into PROCESSING and locks the exchange
// rate and fees in the same atomic unit. Idempotent on the rate lock.
func (o *Orchestrator) startProcessing(ctx context.Context, orderID string) error {
	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusAwaitingPayment {
			return nil
		}

		route, ok := o.routing.Lookup(order.CorridorSource, order.CorridorDest)
		if !ok {
			return ErrUnknownCorridor
		}

		if err := o.rates.LockRate(ctx, order, route.Fees); err != nil {
			return err
		}

		next, err := domain.Transition(order.Status, domain.EventProcessingStarted)
		if err != nil {
			return err
		}
		order.Status = next
		order.StartedAt = time.Now()

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeProcessing, map[string]any{
			"rate":        order.ExchangeRate,
			"rate_source": order.RateSource,
			"fee_total":   order.Fees.Total,
		})
	})
}

// runLeg drives one provider leg to a decision: succeeded, retryable, or
// terminal. The idempotency key is derived from (order, role) and is stable
// across retries, so repeated invocations cannot create a second transfer.
func (o *Orchestrator) runLeg(ctx context.Context, order *domain.PaymentOrder, providerID string, role domain.LegRole, amount float64, currency string) (legOutcome, error) {
	prev, err := o.legRepo.GetActive(ctx, order.ID, role)
	if err != nil {
		return legOutcome{}, err
	}
	if prev != nil && prev.Status == domain.LegAttemptSucceeded {
		return legOutcome{kind: legSucceeded}, nil
	}

	gateway, err := o.providers.Get(providerID)
	if err != nil {
		return legOutcome{}, err
	}

	key := legIdempotencyKey(order.ID, role)

	// A prior attempt the provider acknowledged may have finished since.
	// Poll before re-driving initiate; a webhook may still beat the poll
	// and that is fine, both paths converge on the same attempt row.
	if prev != nil && prev.ExternalID != "" {
		out, decided, err := o.pollAttempt(ctx, gateway, prev, key)
		if decided || err != nil {
			return out, err
		}
	}

	req := provider.LegRequest{
		OrderID:   order.ID,
		Role:      string(role),
		Amount:    amount,
		Currency:  currency,
		Reference: key,
	}

	reservation, err := o.reserve(ctx, key, payloadHash(req))
	if err != nil {
		return legOutcome{}, err
	}

	if reservation.State == ledger.StateCompleted {
		return o.replayStoredResult(ctx, key, reservation.Result, prev)
	}

	attempt, err := o.openAttempt(ctx, order.ID, gateway.ID(), role, key, req, prev)
	if err != nil {
		return legOutcome{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	result, callErr := gateway.Initiate(callCtx, req, key)
	cancel()

	if callErr == nil && result.Outcome == provider.OutcomeAccepted {
		stored, _ := json.Marshal(result)
		if err := o.ledger.Complete(ctx, key, string(stored)); err != nil {
			return legOutcome{}, err
		}
		if err := o.recordLegSuccess(ctx, attempt, result); err != nil {
			return legOutcome{}, err
		}
		return legOutcome{kind: legSucceeded}, nil
	}

	return o.recordLegFailure(ctx, attempt, key, result, callErr)
}

// pollAttempt asks the provider for the authoritative state of an attempt
// whose initiate call ended without a definitive local answer. Returns
// decided=false when the poll itself failed, in which case the caller
// re-drives initiate under the same provider-deduped key.
func (o *Orchestrator) pollAttempt(ctx context.Context, gateway provider.Gateway, attempt *domain.ProviderLegAttempt, key string) (legOutcome, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	status, err := gateway.CheckStatus(callCtx, attempt.ExternalID)
	cancel()
	if err != nil {
		return legOutcome{}, false, nil
	}

	switch status.Value {
	case provider.StatusSucceeded:
		result := provider.LegResult{Outcome: provider.OutcomeAccepted, ExternalID: attempt.ExternalID}
		stored, _ := json.Marshal(result)
		if err := o.completeLedgerEntry(ctx, key, string(stored)); err != nil {
			return legOutcome{}, false, err
		}
		if attempt.Status != domain.LegAttemptSucceeded {
			if err := o.recordLegSuccess(ctx, attempt, result); err != nil {
				return legOutcome{}, false, err
			}
		}
		return legOutcome{kind: legSucceeded}, true, nil

	case provider.StatusFailed:
		stored, _ := json.Marshal(provider.LegResult{
			Outcome:   provider.OutcomeRejected,
			ErrorCode: status.ErrorCode,
		})
		if err := o.completeLedgerEntry(ctx, key, string(stored)); err != nil {
			return legOutcome{}, false, err
		}
		out, err := o.markAttemptFailed(ctx, attempt, status.ErrorCode, status.Detail, "poll")
		return out, true, err
	}

	// Still pending at the provider; wait for the webhook or the next poll
	// rather than initiating again.
	return legOutcome{kind: legRetryable, code: "pending", message: "awaiting provider confirmation"}, true, nil
}

// reserve claims the leg's idempotency key. A stale in-progress reservation
// from an interrupted step is released and re-claimed; the provider dedupes
// on the same key, so re-driving it cannot double-transfer.
func (o *Orchestrator) reserve(ctx context.Context, key, hash string) (ledger.Reservation, error) {
	reservation, err := o.ledger.Reserve(ctx, key, hash)
	if err != nil {
		return ledger.Reservation{}, err
	}

	if reservation.State == ledger.StateInProgress {
		if err := o.ledger.Fail(ctx, key); err != nil {
			return ledger.Reservation{}, err
		}
		reservation, err = o.ledger.Reserve(ctx, key, hash)
		if err != nil {
			return ledger.Reservation{}, err
		}
	}

	return reservation, nil
}

// replayStoredResult applies a previously completed ledger entry without
// calling the provider again.
func (o *Orchestrator) replayStoredResult(ctx context.Context, key, stored string, prev *domain.ProviderLegAttempt) (legOutcome, error) {
	var result provider.LegResult
	if err := json.Unmarshal([]byte(stored), &result); err != nil {
		return legOutcome{}, fmt.Errorf("corrupt ledger entry for %s: %w", key, err)
	}

	if result.Outcome == provider.OutcomeAccepted {
		if prev != nil && prev.Status != domain.LegAttemptSucceeded {
			if err := o.recordLegSuccess(ctx, prev, result); err != nil {
				return legOutcome{}, err
			}
		}
		return legOutcome{kind: legSucceeded}, nil
	}

	return legOutcome{kind: legTerminal, code: result.ErrorCode, message: "provider rejected transfer"}, nil
}

// openAttempt records the leg attempt row immediately before the provider
// call so the audit trail reflects what was attempted even on a crash.
func (o *Orchestrator) openAttempt(ctx context.Context, orderID, providerID string, role domain.LegRole, key string, req provider.LegRequest, prev *domain.ProviderLegAttempt) (*domain.ProviderLegAttempt, error) {
	number := 1
	if prev != nil {
		number = prev.AttemptNumber + 1
	}

	snap, _ := json.Marshal(req)
	now := time.Now()
	attempt := &domain.ProviderLegAttempt{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		ProviderID:     providerID,
		Role:           role,
		IdempotencyKey: key,
		AttemptNumber:  number,
		Status:         domain.LegAttemptPending,
		RequestSnap:    string(snap),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := o.legRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	return attempt, nil
}

// recordLegSuccess marks the attempt succeeded and appends the leg event
// in one atomic unit.
func (o *Orchestrator) recordLegSuccess(ctx context.Context, attempt *domain.ProviderLegAttempt, result provider.LegResult) error {
	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, attempt.OrderID)
		if err != nil {
			return err
		}

		attempt.Status = domain.LegAttemptSucceeded
		attempt.ExternalID = result.ExternalID
		snap, _ := json.Marshal(result)
		attempt.ResponseSnap = string(snap)
		attempt.UpdatedAt = time.Now()

		if err := tx.Legs().Update(ctx, attempt); err != nil {
			return err
		}

		// A leg success closes out the retry budget for the next leg.
		order.RetryCount = 0
		order.NextAttemptAt = time.Time{}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		eventType := domain.EventTypeLeg1Succeeded
		if attempt.Role == domain.LegRolePayout {
			eventType = domain.EventTypeLeg2Succeeded
		}

		return o.appendEvent(ctx, tx, attempt.OrderID, eventType, map[string]any{
			"provider_id": attempt.ProviderID,
			"external_id": attempt.ExternalID,
			"attempt":     attempt.AttemptNumber,
		})
	})
}

// recordLegFailure classifies the failure, updates the attempt and the
// ledger accordingly, and appends a LegAttemptFailed event.
func (o *Orchestrator) recordLegFailure(ctx context.Context, attempt *domain.ProviderLegAttempt, key string, result provider.LegResult, callErr error) (legOutcome, error) {
	class := provider.Classify(callErr)
	if callErr == nil {
		// A rejected result without a transport error is a definitive
		// provider answer, such as a replayed rejection.
		class = provider.ClassTerminal
	}
	code, message := failureDetail(callErr)
	if callErr == nil && result.ErrorCode != "" {
		code = result.ErrorCode
	}

	switch class {
	case provider.ClassTerminal:
		// A definitive rejection is a result: replays of this key must
		// observe the same rejection, so the ledger entry completes.
		stored, _ := json.Marshal(provider.LegResult{Outcome: provider.OutcomeRejected, ErrorCode: code})
		if err := o.ledger.Complete(ctx, key, string(stored)); err != nil {
			return legOutcome{}, err
		}
	case provider.ClassRetryable:
		// No transfer was made; release the key for the retry.
		if err := o.ledger.Fail(ctx, key); err != nil {
			return legOutcome{}, err
		}
	case provider.ClassAmbiguous:
		// The transfer may exist. Keep the reservation; the retry path
		// re-drives it under the same provider-deduped key.
	}

	retryable := class != provider.ClassTerminal

	err := o.uow.Within(ctx, func(tx repository.Tx) error {
		if _, err := tx.Orders().GetByIDForUpdate(ctx, attempt.OrderID); err != nil {
			return err
		}

		attempt.Status = domain.LegAttemptFailed
		attempt.ErrorCode = code
		attempt.ErrorMessage = message
		attempt.Retryable = retryable
		if result.ExternalID != "" {
			attempt.ExternalID = result.ExternalID
		}
		attempt.UpdatedAt = time.Now()

		if err := tx.Legs().Update(ctx, attempt); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, attempt.OrderID, domain.EventTypeLegAttemptFailed, map[string]any{
			"provider_id": attempt.ProviderID,
			"role":        string(attempt.Role),
			"attempt":     attempt.AttemptNumber,
			"error_code":  code,
			"retryable":   retryable,
		})
	})
	if err != nil {
		return legOutcome{}, err
	}

	o.logger.Warn("leg attempt failed",
		"order_id", attempt.OrderID,
		"role", string(attempt.Role),
		"attempt", attempt.AttemptNumber,
		"class", string(class),
		"error_code", code,
	)

	if retryable {
		return legOutcome{kind: legRetryable, code: code, message: message}, nil
	}
	return legOutcome{kind: legTerminal, code: code, message: message}, nil
}

// markAttemptFailed records a definitive non-retryable failure observed
// outside the initiate call itself, such as a status poll.
func (o *Orchestrator) markAttemptFailed(ctx context.Context, attempt *domain.ProviderLegAttempt, code, message, source string) (legOutcome, error) {
	err := o.uow.Within(ctx, func(tx repository.Tx) error {
		if _, err := tx.Orders().GetByIDForUpdate(ctx, attempt.OrderID); err != nil {
			return err
		}

		attempt.Status = domain.LegAttemptFailed
		attempt.ErrorCode = code
		attempt.ErrorMessage = message
		attempt.Retryable = false
		attempt.UpdatedAt = time.Now()

		if err := tx.Legs().Update(ctx, attempt); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, attempt.OrderID, domain.EventTypeLegAttemptFailed, map[string]any{
			"provider_id": attempt.ProviderID,
			"role":        string(attempt.Role),
			"attempt":     attempt.AttemptNumber,
			"error_code":  code,
			"retryable":   false,
			"source":      source,
		})
	})
	if err != nil {
		return legOutcome{}, err
	}

	return legOutcome{kind: legTerminal, code: code, message: message}, nil
}

// scheduleRetry increments the retry counter and either books the next
// attempt with exponential backoff and jitter, or escalates when the
// budget is exhausted.
func (o *Orchestrator) scheduleRetry(ctx context.Context, orderID string, role domain.LegRole, out legOutcome) error {
	exhausted := false

	err := o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusProcessing {
			return nil
		}

		order.RetryCount++
		if order.RetryCount >= o.cfg.MaxAttempts {
			exhausted = true
			return tx.Orders().Update(ctx, order)
		}

		delay := o.backoff(order.RetryCount)
		order.NextAttemptAt = time.Now().Add(delay)
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeRetryScheduled, map[string]any{
			"role":        string(role),
			"retry_count": order.RetryCount,
			"delay_ms":    delay.Milliseconds(),
			"error_code":  out.code,
		})
	})
	if err != nil {
		return err
	}

	if exhausted {
		reason := domain.ReasonLeg1Exhausted
		if role == domain.LegRolePayout {
			reason = domain.ReasonLeg2FailedAfterLeg1
		}
		return o.escalate(ctx, orderID, reason, out)
	}

	return nil
}

// backoff returns the delay before retry n (1-based): exponential from the
// configured base, capped, with up to 25% jitter.
func (o *Orchestrator) backoff(retry int) time.Duration {
	delay := o.cfg.BackoffBase
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= o.cfg.BackoffCap {
			delay = o.cfg.BackoffCap
			break
		}
	}

	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}

// escalate moves the order to REQUIRES_ACTION and opens an intervention
// case carrying both legs' detail for the operator.
func (o *Orchestrator) escalate(ctx context.Context, orderID, reason string, out legOutcome) error {
	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, err := domain.Transition(order.Status, domain.EventActionRequired)
		if err != nil {
			return err
		}
		order.Status = next
		order.RetryCount = o.clampRetryCount(order.RetryCount)
		order.NextAttemptAt = time.Time{}
		order.FailureCode = out.code
		order.FailureReason = out.message

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		open, err := tx.Cases().GetOpenByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		caseID := ""
		if open == nil {
			attempts, err := tx.Legs().ListByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			detail, _ := json.Marshal(attempts)

			newCase := &domain.ManualInterventionCase{
				ID:        uuid.New().String(),
				OrderID:   orderID,
				Reason:    reason,
				Detail:    string(detail),
				Priority:  casePriority(reason),
				Status:    domain.CaseStatusPending,
				DueBy:     time.Now().Add(24 * time.Hour),
				CreatedAt: time.Now(),
			}
			if err := tx.Cases().Create(ctx, newCase); err != nil {
				return err
			}
			caseID = newCase.ID
		} else {
			caseID = open.ID
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeRequiresAction, map[string]any{
			"reason":     reason,
			"case_id":    caseID,
			"error_code": out.code,
		})
	})
}

// clampRetryCount keeps the recorded counter at the configured budget even
// when escalation raced an extra failure in.
func (o *Orchestrator) clampRetryCount(n int) int {
	if n > o.cfg.MaxAttempts {
		return o.cfg.MaxAttempts
	}
	return n
}

// failOrder moves the order to FAILED with the provider's error code.
func (o *Orchestrator) failOrder(ctx context.Context, orderID, code, message string) error {
	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, err := domain.Transition(order.Status, domain.EventOrderFailed)
		if err != nil {
			return err
		}
		order.Status = next
		order.FailureCode = code
		order.FailureReason = message
		order.NextAttemptAt = time.Time{}
		order.CompletedAt = time.Now()

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeFailed, map[string]any{
			"error_code": code,
		})
	})
}

// completeOrder records settlement and moves the order to COMPLETED.
func (o *Orchestrator) completeOrder(ctx context.Context, orderID string) error {
	return o.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCompleted {
			return nil
		}

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

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		return o.appendEvent(ctx, tx, orderID, domain.EventTypeCompleted, map[string]any{
			"settled_amount":   order.SettledAmount,
			"settled_currency": order.SettledCurrency,
		})
	})
}

// appendEvent appends one event to the order's log inside tx.
func (o *Orchestrator) appendEvent(ctx context.Context, tx repository.Tx, orderID string, eventType domain.EventType, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return tx.Events().Append(ctx, &domain.PaymentEvent{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Type:       eventType,
		Payload:    string(body),
		OccurredAt: time.Now(),
	})
}

// legIdempotencyKey derives the stable key for one leg of one order.
func legIdempotencyKey(orderID string, role domain.LegRole) string {
	suffix := "collect"
	if role == domain.LegRolePayout {
		suffix = "payout"
	}
	return fmt.Sprintf("order:%s:%s", orderID, suffix)
}

// payloadHash fingerprints a leg request to detect idempotency-key reuse
// with a different payload.
func payloadHash(req provider.LegRequest) string {
	body, _ := json.Marshal(req)
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// failureDetail extracts a code and message from a classified provider error.
func failureDetail(err error) (string, string) {
	if err == nil {
		return "rejected", "provider rejected transfer"
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Code, pe.Message
	}
	return "unknown", err.Error()
}

func casePriority(reason string) domain.CasePriority {
	if reason == domain.ReasonLeg2FailedAfterLeg1 {
		// Funds are held in the origin leg; these cases jump the queue.
		return domain.CasePriorityHigh
	}
	return domain.CasePriorityNormal
}
