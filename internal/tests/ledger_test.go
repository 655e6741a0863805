package tests

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"corridor/internal/ledger"
	"corridor/internal/provider"
)

func TestLedger_ConcurrentReserveAdmitsExactlyOne(t *testing.T) {
	t.Parallel()

	l := NewMockLedger()

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	newCount := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := l.Reserve(context.Background(), "order:o-1:collect", "hash-1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if r.State == ledger.StateNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if newCount != 1 {
		t.Fatalf("expected exactly one caller to win the reservation, got %d", newCount)
	}
}

func TestLedger_CompletedEntryReplaysResult(t *testing.T) {
	t.Parallel()

	l := NewMockLedger()

	r, err := l.Reserve(context.Background(), "order:o-2:payout", "hash-1")
	if err != nil || r.State != ledger.StateNew {
		t.Fatalf("expected a fresh reservation, got %v (%v)", r.State, err)
	}

	if err := l.Complete(context.Background(), "order:o-2:payout", `{"Outcome":"accepted","ExternalID":"ext-1"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err = l.Reserve(context.Background(), "order:o-2:payout", "hash-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.State != ledger.StateCompleted {
		t.Fatalf("expected completed state, got %v", r.State)
	}
	if r.Result != `{"Outcome":"accepted","ExternalID":"ext-1"}` {
		t.Errorf("expected the stored result to replay, got %s", r.Result)
	}
}

func TestLedger_PayloadMismatchIsConflict(t *testing.T) {
	t.Parallel()

	l := NewMockLedger()

	if _, err := l.Reserve(context.Background(), "order:o-3:collect", "hash-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := l.Reserve(context.Background(), "order:o-3:collect", "hash-2")
	if err != ledger.ErrConflict {
		t.Fatalf("expected ErrConflict on payload mismatch, got %v", err)
	}
}

func TestLedger_FailReleasesOnlyInProgress(t *testing.T) {
	t.Parallel()

	l := NewMockLedger()

	if _, err := l.Reserve(context.Background(), "order:o-4:collect", "hash-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Fail(context.Background(), "order:o-4:collect"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The key is reservable again after the release.
	r, err := l.Reserve(context.Background(), "order:o-4:collect", "hash-1")
	if err != nil || r.State != ledger.StateNew {
		t.Fatalf("expected a fresh reservation after Fail, got %v (%v)", r.State, err)
	}

	// Fail never touches a completed entry.
	if err := l.Complete(context.Background(), "order:o-4:collect", "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Fail(context.Background(), "order:o-4:collect"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state, _, ok := l.Entry("order:o-4:collect"); !ok || state != ledger.StateCompleted {
		t.Error("expected the completed entry to survive Fail")
	}
}

func TestLedger_VoidRemovesRejectionsKeepsAccepted(t *testing.T) {
	t.Parallel()

	l := NewMockLedger()
	ctx := context.Background()

	rejected, _ := json.Marshal(provider.LegResult{Outcome: provider.OutcomeRejected, ErrorCode: "blocked"})
	accepted, _ := json.Marshal(provider.LegResult{Outcome: provider.OutcomeAccepted, ExternalID: "ext-9"})

	_, _ = l.Reserve(ctx, "k-rejected", "h")
	_ = l.Complete(ctx, "k-rejected", string(rejected))
	_, _ = l.Reserve(ctx, "k-accepted", "h")
	_ = l.Complete(ctx, "k-accepted", string(accepted))

	if err := l.Void(ctx, "k-rejected"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, ok := l.Entry("k-rejected"); ok {
		t.Error("expected the rejection to be voided")
	}

	if err := l.Void(ctx, "k-accepted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, ok := l.Entry("k-accepted"); !ok {
		t.Error("an accepted result must never be voided")
	}
}
