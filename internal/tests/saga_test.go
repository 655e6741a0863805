package tests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"corridor/internal/config"
	"corridor/internal/domain"
	"corridor/internal/provider"
	"corridor/internal/service"
)

const (
	collectProviderID = "sandbox-collect"
	payoutProviderID  = "sandbox-payout"
	collectSecret     = "collect-secret"
	payoutSecret      = "payout-secret"

	testRate = 56.0
)

// sagaFixture wires a real orchestrator over in-memory doubles.
type sagaFixture struct {
	orders  *MockOrderRepository
	legs    *MockLegAttemptRepository
	events  *MockEventRepository
	cases   *MockInterventionRepository
	ledger  *MockLedger
	locks   *MockLockStore
	collect *FakeGateway
	payout  *FakeGateway

	orch     *service.Orchestrator
	orderSvc *service.OrderService
	caseSvc  *service.InterventionService
}

func newSagaFixture() *sagaFixture {
	orders := NewMockOrderRepository()
	legs := NewMockLegAttemptRepository()
	events := NewMockEventRepository()
	cases := NewMockInterventionRepository()
	idemLedger := NewMockLedger()
	locks := NewMockLockStore()
	uow := NewMockUnitOfWork(orders, legs, events, cases)

	collect := NewFakeGateway(collectProviderID, collectSecret)
	payout := NewFakeGateway(payoutProviderID, payoutSecret)

	routing := domain.NewRoutingTable([]domain.Route{{
		Corridor:           domain.Corridor{SourceCurrency: "USD", DestCurrency: "PHP"},
		CollectionProvider: collectProviderID,
		PayoutProvider:     payoutProviderID,
		Fees: domain.FeeSchedule{
			PlatformPct: 0.01,
			ProviderPct: 0.005,
			NetworkFlat: 1.0,
			MinimumFee:  1.0,
		},
	}})

	rates := service.NewRateService(service.NewFixedRateSource("test-fixed", map[domain.Corridor]float64{
		{SourceCurrency: "USD", DestCurrency: "PHP"}: testRate,
	}), nil)

	cfg := config.SagaConfig{
		MaxAttempts:     5,
		BackoffBase:     2 * time.Second,
		BackoffCap:      2 * time.Minute,
		ProviderTimeout: 5 * time.Second,
		LockTTL:         30 * time.Second,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orch := service.NewOrchestrator(
		uow, orders, legs, cases, idemLedger,
		provider.NewRegistry(collect, payout), routing, rates, locks, cfg, logger,
	)

	return &sagaFixture{
		orders:   orders,
		legs:     legs,
		events:   events,
		cases:    cases,
		ledger:   idemLedger,
		locks:    locks,
		collect:  collect,
		payout:   payout,
		orch:     orch,
		orderSvc: service.NewOrderService(uow, orders, events, routing, orch, logger),
		caseSvc:  service.NewInterventionService(orch, cases, logger),
	}
}

// createOrder creates a 100 USD -> PHP order awaiting payment.
func (f *sagaFixture) createOrder(t *testing.T) *domain.PaymentOrder {
	t.Helper()
	order, err := f.orderSvc.CreateOrder(context.Background(), service.CreateOrderRequest{
		TenantID:       "tenant-1",
		PaymentLinkID:  "link-1",
		PayerContact:   "payer@example.com",
		SourceAmount:   100,
		SourceCurrency: "USD",
		DestCurrency:   "PHP",
	})
	if err != nil {
		t.Fatalf("unexpected error creating order: %v", err)
	}
	return order
}

func retryableErr(code string) error {
	return &provider.Error{Class: provider.ClassRetryable, Code: code, Message: "provider unavailable"}
}

func terminalErr(code string) error {
	return &provider.Error{Class: provider.ClassTerminal, Code: code, Message: "provider rejected"}
}

// ──────────────────────────────────────────────
// HAPPY PATH
// ──────────────────────────────────────────────

func TestSaga_HappyPathCompletesBothLegs(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	if order.Status != domain.OrderStatusAwaitingPayment {
		t.Fatalf("expected AWAITING_PAYMENT, got %s", order.Status)
	}
	if order.Settled {
		t.Error("order must not be settled before completion")
	}

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error confirming payment: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}

	// Settled amount is (source - fees) at the locked rate.
	// 100 USD with 1% + 0.5% + 1.00 flat = 2.50 in fees.
	wantSettled := (100 - 2.5) * testRate
	if stored.SettledAmount != wantSettled {
		t.Errorf("expected settled amount %.2f, got %.2f", wantSettled, stored.SettledAmount)
	}
	if stored.SettledCurrency != "PHP" {
		t.Errorf("expected settled currency PHP, got %s", stored.SettledCurrency)
	}
	if !stored.Settled {
		t.Error("completed order must be settled")
	}

	// One real transfer per leg.
	if got := f.collect.TransferCount; got != 1 {
		t.Errorf("expected 1 collection transfer, got %d", got)
	}
	if got := f.payout.TransferCount; got != 1 {
		t.Errorf("expected 1 payout transfer, got %d", got)
	}

	wantEvents := []domain.EventType{
		domain.EventTypeCreated,
		domain.EventTypeProcessing,
		domain.EventTypeLeg1Succeeded,
		domain.EventTypeLeg2Succeeded,
		domain.EventTypeCompleted,
	}
	gotEvents := f.events.EventTypes(order.ID)
	if len(gotEvents) != len(wantEvents) {
		t.Fatalf("expected %d events, got %d: %v", len(wantEvents), len(gotEvents), gotEvents)
	}
	for i, want := range wantEvents {
		if gotEvents[i] != want {
			t.Errorf("event %d: expected %s, got %s", i, want, gotEvents[i])
		}
	}
}

func TestSaga_EventSequenceIsGapless(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := f.orderSvc.ListEvents(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, e := range events {
		if e.Seq != int64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
}

func TestSaga_RateLockedOnceAndNeverChanges(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := f.orders.GetOrder(order.ID)
	if !first.RateLocked || first.ExchangeRate != testRate {
		t.Fatalf("expected locked rate %.1f, got %.1f (locked=%v)", testRate, first.ExchangeRate, first.RateLocked)
	}

	// A second confirm replays cleanly and leaves the lock untouched.
	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := f.orders.GetOrder(order.ID)
	if second.ExchangeRate != first.ExchangeRate || !second.RateLockedAt.Equal(first.RateLockedAt) {
		t.Error("rate lock changed on replay")
	}
}

// ──────────────────────────────────────────────
// LEG 1 FAILURES
// ──────────────────────────────────────────────

func TestSaga_Leg1TerminalFailureFailsOrder(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	f.collect.ScriptFailure(domain.LegRoleCollection, terminalErr("insufficient_funds"))

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if stored.FailureCode != "insufficient_funds" {
		t.Errorf("expected failure code insufficient_funds, got %s", stored.FailureCode)
	}
	if stored.Settled {
		t.Error("failed order must not be settled")
	}

	// The payout leg is never touched when collection fails.
	if got := f.payout.InitiateCallCount; got != 0 {
		t.Errorf("expected no payout calls, got %d", got)
	}

	gotEvents := f.events.EventTypes(order.ID)
	last := gotEvents[len(gotEvents)-1]
	if last != domain.EventTypeFailed {
		t.Errorf("expected last event %s, got %s", domain.EventTypeFailed, last)
	}
}

func TestSaga_Leg1RetryableFailureSchedulesBackoff(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	f.collect.ScriptFailure(domain.LegRoleCollection, retryableErr("timeout"))

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", stored.RetryCount)
	}
	if stored.NextAttemptAt.IsZero() || !stored.NextAttemptAt.After(time.Now()) {
		t.Error("expected a future next attempt time")
	}

	// The scheduler drives the retry; the next attempt succeeds end to end.
	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored = f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED after retry, got %s", stored.Status)
	}
	if stored.RetryCount != 0 {
		t.Errorf("expected retry count reset to 0, got %d", stored.RetryCount)
	}
}

func TestSaga_Leg1ExhaustionEscalates(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	for i := 0; i < 5; i++ {
		f.collect.ScriptFailure(domain.LegRoleCollection, retryableErr("timeout"))
	}

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := f.orch.Advance(context.Background(), order.ID); err != nil {
			t.Fatalf("unexpected error on retry %d: %v", i+1, err)
		}
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusRequiresAction {
		t.Fatalf("expected REQUIRES_ACTION, got %s", stored.Status)
	}
	if stored.RetryCount != 5 {
		t.Errorf("expected retry count 5, got %d", stored.RetryCount)
	}

	c := f.cases.OpenCaseFor(order.ID)
	if c == nil {
		t.Fatal("expected an open intervention case")
	}
	if c.Reason != domain.ReasonLeg1Exhausted {
		t.Errorf("expected reason %s, got %s", domain.ReasonLeg1Exhausted, c.Reason)
	}

	// One attempt row per try, none marked retryable-exceeded as success.
	attempts := f.legs.Attempts(order.ID, domain.LegRoleCollection)
	if len(attempts) != 5 {
		t.Errorf("expected 5 collection attempts, got %d", len(attempts))
	}

	// Further advances are inert in REQUIRES_ACTION.
	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.orders.GetOrder(order.ID).Status; got != domain.OrderStatusRequiresAction {
		t.Errorf("expected order to stay in REQUIRES_ACTION, got %s", got)
	}
}

// ──────────────────────────────────────────────
// LEG 2 FAILURES (COMPENSATION BOUNDARY)
// ──────────────────────────────────────────────

func TestSaga_Leg2TerminalFailureEscalatesNeverAutoRefunds(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	f.payout.ScriptFailure(domain.LegRolePayout, terminalErr("beneficiary_account_closed"))

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusRequiresAction {
		t.Fatalf("expected REQUIRES_ACTION, got %s", stored.Status)
	}
	if stored.Settled {
		t.Error("order must not settle when payout failed")
	}

	c := f.cases.OpenCaseFor(order.ID)
	if c == nil {
		t.Fatal("expected an open intervention case")
	}
	if c.Reason != domain.ReasonLeg2FailedAfterLeg1 {
		t.Errorf("expected reason %s, got %s", domain.ReasonLeg2FailedAfterLeg1, c.Reason)
	}
	if c.Priority != domain.CasePriorityHigh {
		t.Errorf("expected high priority, got %s", c.Priority)
	}

	// Collected funds are never reversed without an operator decision.
	if got := f.collect.RefundCallCount; got != 0 {
		t.Errorf("expected no automatic refund, got %d refund calls", got)
	}

	// Leg 1 stays succeeded; its money is held, not returned.
	attempt, _ := f.legs.GetActive(context.Background(), order.ID, domain.LegRoleCollection)
	if attempt == nil || attempt.Status != domain.LegAttemptSucceeded {
		t.Error("expected collection attempt to remain SUCCEEDED")
	}
}

func TestSaga_Leg2ExhaustionEscalatesWithCompensationReason(t *testing.T) {
	t.Parallel()

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
			t.Fatalf("unexpected error on retry %d: %v", i+1, err)
		}
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

	// Collection ran exactly once despite five payout retries.
	if got := f.collect.TransferCount; got != 1 {
		t.Errorf("expected 1 collection transfer, got %d", got)
	}
}

// ──────────────────────────────────────────────
// IDEMPOTENCY AND CONCURRENCY
// ──────────────────────────────────────────────

func TestSaga_DuplicateConfirmDoesNotDoubleTransfer(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	for i := 0; i < 3; i++ {
		if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
			t.Fatalf("unexpected error on confirm %d: %v", i+1, err)
		}
	}

	if got := f.collect.TransferCount; got != 1 {
		t.Errorf("expected 1 collection transfer, got %d", got)
	}
	if got := f.payout.TransferCount; got != 1 {
		t.Errorf("expected 1 payout transfer, got %d", got)
	}

	// Replays append nothing to the event log.
	gotEvents := f.events.EventTypes(order.ID)
	if len(gotEvents) != 5 {
		t.Errorf("expected 5 events, got %d: %v", len(gotEvents), gotEvents)
	}
}

func TestSaga_ConcurrentAdvanceIsRejectedByOrderLock(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	f.locks.Hold(order.ID)

	err := f.orch.Advance(context.Background(), order.ID)
	if err != service.ErrOrderBusy {
		t.Fatalf("expected ErrOrderBusy, got %v", err)
	}

	// Nothing ran.
	if got := f.collect.InitiateCallCount; got != 0 {
		t.Errorf("expected no provider calls, got %d", got)
	}
	if got := f.orders.GetOrder(order.ID).Status; got != domain.OrderStatusAwaitingPayment {
		t.Errorf("expected order untouched in AWAITING_PAYMENT, got %s", got)
	}
}

func TestSaga_InterruptedStepReplaysStoredResult(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a re-drive of the collection leg after a crash: the ledger
	// already holds the accepted result, so the provider sees the same key
	// and no second transfer happens.
	if err := f.orch.Advance(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.collect.TransferCount; got != 1 {
		t.Errorf("expected 1 collection transfer after replay, got %d", got)
	}
}

// ──────────────────────────────────────────────
// CANCELLATION
// ──────────────────────────────────────────────

func TestSaga_CancelBeforeConfirmSucceeds(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	cancelled, err := f.orderSvc.CancelOrder(context.Background(), order.ID, "payer changed mind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	gotEvents := f.events.EventTypes(order.ID)
	if gotEvents[len(gotEvents)-1] != domain.EventTypeCancelled {
		t.Errorf("expected Cancelled event, got %v", gotEvents)
	}
}

func TestSaga_CancelAfterLegInitiatedIsRejected(t *testing.T) {
	t.Parallel()

	f := newSagaFixture()
	order := f.createOrder(t)

	if err := f.orderSvc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.orderSvc.CancelOrder(context.Background(), order.ID, "too late")
	if err != service.ErrOrderNotCancellable {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
	if got := f.orders.GetOrder(order.ID).Status; got != domain.OrderStatusCompleted {
		t.Errorf("expected order to stay COMPLETED, got %s", got)
	}
}
