package tests

import (
	"context"
	"testing"

	"corridor/internal/domain"
	"corridor/internal/provider"
)

func TestPoll_AcknowledgedAttemptCompletesWithoutReinitiate(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := pendingPayout(t, f, "po-ext-10")

	// The transfer went through on the provider side; only the answer
	// never made it back.
	f.payout.SetStatus("po-ext-10", provider.LegStatus{Value: provider.StatusSucceeded})

	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}

	if got := f.payout.CheckStatusCallCount; got != 1 {
		t.Errorf("expected 1 status poll, got %d", got)
	}
	// No second initiate once the provider acknowledged the first.
	if got := f.payout.InitiateCallCount; got != 1 {
		t.Errorf("expected 1 initiate call, got %d", got)
	}

	attempt, _ := f.legs.GetActive(context.Background(), order.ID, domain.LegRolePayout)
	if attempt.Status != domain.LegAttemptSucceeded {
		t.Errorf("expected payout attempt SUCCEEDED, got %s", attempt.Status)
	}
}

func TestPoll_FailedAttemptEscalates(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := pendingPayout(t, f, "po-ext-11")

	f.payout.SetStatus("po-ext-11", provider.LegStatus{
		Value:     provider.StatusFailed,
		ErrorCode: "beneficiary_account_closed",
	})

	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusRequiresAction {
		t.Fatalf("expected REQUIRES_ACTION, got %s", stored.Status)
	}

	c := f.cases.OpenCaseFor(order.ID)
	if c == nil {
		t.Fatal("expected an open intervention case")
	}
	if c.Reason != domain.ReasonLeg2FailedAfterLeg1 {
		t.Errorf("expected reason %s, got %s", domain.ReasonLeg2FailedAfterLeg1, c.Reason)
	}

	attempt, _ := f.legs.GetActive(context.Background(), order.ID, domain.LegRolePayout)
	if attempt.Retryable {
		t.Error("expected the polled failure to be non-retryable")
	}
	if attempt.ErrorCode != "beneficiary_account_closed" {
		t.Errorf("expected polled error code, got %s", attempt.ErrorCode)
	}
}

func TestPoll_PendingAttemptWaitsWithoutReinitiate(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := pendingPayout(t, f, "po-ext-12")

	f.payout.SetStatus("po-ext-12", provider.LegStatus{Value: provider.StatusPending})

	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", stored.Status)
	}
	if stored.NextAttemptAt.IsZero() {
		t.Error("expected a scheduled re-check")
	}
	if got := f.payout.InitiateCallCount; got != 1 {
		t.Errorf("expected no re-initiate while pending, got %d initiate calls", got)
	}
}
