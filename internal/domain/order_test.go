package domain

import "testing"

func TestTransition_LegalPaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  OrderStatus
		event TransitionEvent
		want  OrderStatus
	}{
		{OrderStatusCreated, EventPaymentInitiated, OrderStatusAwaitingPayment},
		{OrderStatusCreated, EventOrderCancelled, OrderStatusCancelled},
		{OrderStatusAwaitingPayment, EventProcessingStarted, OrderStatusProcessing},
		{OrderStatusAwaitingPayment, EventOrderCancelled, OrderStatusCancelled},
		{OrderStatusProcessing, EventOrderCompleted, OrderStatusCompleted},
		{OrderStatusProcessing, EventOrderFailed, OrderStatusFailed},
		{OrderStatusProcessing, EventActionRequired, OrderStatusRequiresAction},
		{OrderStatusRequiresAction, EventProcessingResumed, OrderStatusProcessing},
		{OrderStatusRequiresAction, EventOrderCompleted, OrderStatusCompleted},
		{OrderStatusRequiresAction, EventOrderFailed, OrderStatusFailed},
		{OrderStatusCompleted, EventOrderRefunded, OrderStatusRefunded},
	}

	for _, tc := range cases {
		got, err := Transition(tc.from, tc.event)
		if err != nil {
			t.Errorf("Transition(%s, %s): unexpected error %v", tc.from, tc.event, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", tc.from, tc.event, got, tc.want)
		}
	}
}

func TestTransition_IllegalPathsRejected(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  OrderStatus
		event TransitionEvent
	}{
		{OrderStatusCreated, EventOrderCompleted},
		{OrderStatusAwaitingPayment, EventOrderCompleted},
		{OrderStatusProcessing, EventPaymentInitiated},
		{OrderStatusProcessing, EventOrderCancelled},
		{OrderStatusCompleted, EventOrderFailed},
		{OrderStatusCompleted, EventProcessingStarted},
		{OrderStatusFailed, EventProcessingResumed},
		{OrderStatusCancelled, EventPaymentInitiated},
		{OrderStatusRefunded, EventOrderRefunded},
	}

	for _, tc := range cases {
		got, err := Transition(tc.from, tc.event)
		if err != ErrInvalidTransition {
			t.Errorf("Transition(%s, %s): expected ErrInvalidTransition, got %v", tc.from, tc.event, err)
		}
		if got != tc.from {
			t.Errorf("Transition(%s, %s) moved to %s on error", tc.from, tc.event, got)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []OrderStatus{OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	live := []OrderStatus{OrderStatusCreated, OrderStatusAwaitingPayment, OrderStatusProcessing, OrderStatusRequiresAction}
	for _, s := range live {
		if IsTerminal(s) {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestCancellable_OnlyBeforeProcessing(t *testing.T) {
	t.Parallel()

	if !Cancellable(OrderStatusCreated) || !Cancellable(OrderStatusAwaitingPayment) {
		t.Error("expected pre-processing statuses to be cancellable")
	}

	for _, s := range []OrderStatus{OrderStatusProcessing, OrderStatusRequiresAction, OrderStatusCompleted, OrderStatusFailed} {
		if Cancellable(s) {
			t.Errorf("expected %s to not be cancellable", s)
		}
	}
}

func TestValidResolution(t *testing.T) {
	t.Parallel()

	for _, a := range []ResolutionAction{ResolutionRetry, ResolutionForceComplete, ResolutionForceFail, ResolutionRefund, ResolutionCancel} {
		if !ValidResolution(a) {
			t.Errorf("expected %s to be valid", a)
		}
	}
	if ValidResolution(ResolutionAction("setStatus")) {
		t.Error("expected free-form action to be rejected")
	}
}
