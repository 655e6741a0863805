package tests

import (
	"context"
	"encoding/json"
	"testing"

	"corridor/internal/domain"
	"corridor/internal/service"
)

// escalatedOrder drives an order into REQUIRES_ACTION with leg 1 collected
// and leg 2 terminally rejected, and returns the open case.
func escalatedOrder(t *testing.T, f *sagaFixture) (*domain.PaymentOrder, *domain.ManualInterventionCase) {
	t.Helper()

	order := f.createOrder(t)
	f.payout.ScriptFailure(domain.LegRolePayout, terminalErr("beneficiary_account_closed"))

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := f.cases.OpenCaseFor(order.ID)
	if c == nil {
		t.Fatal("expected an open intervention case")
	}
	return f.orders.GetOrder(order.ID), c
}

func TestIntervention_ResolveRetryReentersTheSaga(t *testing.T) {
	t.Parallel()

	// Escalate through payout retry exhaustion; the provider itself never
	// rejected, so an operator retry can still succeed.
	f := newSagaFixture()
	order := f.createOrder(t)
	for i := 0; i < 5; i++ {
		f.payout.ScriptFailure(domain.LegRolePayout, retryableErr("provider_unavailable"))
	}
	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := f.orch.Advance(context.Background(), order.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	c := f.cases.OpenCaseFor(order.ID)
	if c == nil {
		t.Fatal("expected an open intervention case")
	}

	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionRetry,
		Notes:    "beneficiary switched accounts, retry",
		Operator: "ops-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED after operator retry, got %s", stored.Status)
	}
	if stored.RetryCount != 0 {
		t.Errorf("expected retry count reset, got %d", stored.RetryCount)
	}

	resolved, _ := f.cases.GetByID(context.Background(), c.ID)
	if resolved.Status != domain.CaseStatusResolved {
		t.Errorf("expected case resolved, got %s", resolved.Status)
	}
	if resolved.AssignedTo != "ops-1" {
		t.Errorf("expected case assigned to ops-1, got %s", resolved.AssignedTo)
	}

	// The collection leg is never re-collected across all retries.
	if got := f.collect.TransferCount; got != 1 {
		t.Errorf("expected 1 collection transfer, got %d", got)
	}
	if got := f.payout.TransferCount; got != 1 {
		t.Errorf("expected 1 payout transfer, got %d", got)
	}
}

func TestIntervention_ResolveRefundReversesCollection(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order, c := escalatedOrder(t, f)

	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionRefund,
		Notes:    "payout unrecoverable, return funds",
		Operator: "ops-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.collect.RefundCallCount; got != 1 {
		t.Fatalf("expected 1 refund call, got %d", got)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if stored.FailureCode != "refunded_by_operator" {
		t.Errorf("expected failure code refunded_by_operator, got %s", stored.FailureCode)
	}

	gotEvents := f.events.EventTypes(order.ID)
	sawResolution := false
	for _, e := range gotEvents {
		if e == domain.EventTypeResolvedByOperator {
			sawResolution = true
		}
	}
	if !sawResolution {
		t.Errorf("expected a ResolvedByOperator event, got %v", gotEvents)
	}
}

func TestIntervention_ResolveForceCompleteSettlesOrder(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order, c := escalatedOrder(t, f)

	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionForceComplete,
		Notes:    "payout confirmed out of band",
		Operator: "ops-3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	if !stored.Settled {
		t.Error("force-completed order must be settled")
	}
}

func TestIntervention_ResolveForceFailFailsOrder(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order, c := escalatedOrder(t, f)

	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionForceFail,
		Notes:    "beneficiary unreachable, closing out",
		Operator: "ops-7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if stored.FailureCode != "failed_by_operator" {
		t.Errorf("expected failure code failed_by_operator, got %s", stored.FailureCode)
	}

	// The audit trail ties the decision back to the case it resolved.
	events, _ := f.events.ListByOrder(context.Background(), order.ID)
	var resolution *domain.PaymentEvent
	for _, e := range events {
		if e.Type == domain.EventTypeResolvedByOperator {
			resolution = e
		}
	}
	if resolution == nil {
		t.Fatal("expected a ResolvedByOperator event")
	}
	var payload struct {
		CaseID   string `json:"case_id"`
		Action   string `json:"action"`
		Operator string `json:"operator"`
	}
	if err := json.Unmarshal([]byte(resolution.Payload), &payload); err != nil {
		t.Fatalf("unexpected payload %q: %v", resolution.Payload, err)
	}
	if payload.CaseID != c.ID {
		t.Errorf("expected resolution payload to reference case %s, got %s", c.ID, payload.CaseID)
	}
	if payload.Action != string(domain.ResolutionForceFail) {
		t.Errorf("expected action %s, got %s", domain.ResolutionForceFail, payload.Action)
	}
	if payload.Operator != "ops-7" {
		t.Errorf("expected operator ops-7, got %s", payload.Operator)
	}
}

func TestIntervention_InvalidActionRejected(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	_, c := escalatedOrder(t, f)

	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionAction("setStatus"),
		Operator: "ops-4",
	})
	if err != service.ErrInvalidResolution {
		t.Fatalf("expected ErrInvalidResolution, got %v", err)
	}

	// The case stays open and the order stays escalated.
	if f.cases.OpenCaseFor(c.OrderID) == nil {
		t.Error("expected case to remain open")
	}
}

func TestIntervention_ResolveTwiceRejected(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	_, c := escalatedOrder(t, f)

	req := service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionForceFail,
		Notes:    "unrecoverable",
		Operator: "ops-5",
	}
	if err := f.caseSvc.Resolve(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.caseSvc.Resolve(context.Background(), req); err != service.ErrCaseAlreadyResolved {
		t.Fatalf("expected ErrCaseAlreadyResolved, got %v", err)
	}
}

func TestIntervention_RepeatedEscalationReusesOpenCase(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order, c := escalatedOrder(t, f)

	// The provider replays its stored rejection for the same key, so the
	// retry terminally fails again and escalates onto a fresh case.
	err := f.caseSvc.Resolve(context.Background(), service.ResolveRequest{
		CaseID:   c.ID,
		Action:   domain.ResolutionRetry,
		Notes:    "try again",
		Operator: "ops-6",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusRequiresAction {
		t.Fatalf("expected REQUIRES_ACTION again, got %s", stored.Status)
	}
	if f.cases.OpenCaseFor(order.ID) == nil {
		t.Error("expected a fresh or reused open case after re-escalation")
	}
}
