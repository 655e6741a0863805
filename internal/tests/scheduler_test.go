package tests

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"corridor/internal/domain"
	"corridor/internal/service"
	"corridor/internal/worker"
)

type recordingAdvancer struct {
	mu  sync.Mutex
	ids map[string]int
	err error
}

func newRecordingAdvancer() *recordingAdvancer {
	return &recordingAdvancer{ids: make(map[string]int)}
}

func (a *recordingAdvancer) Advance(ctx context.Context, orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids[orderID]++
	return a.err
}

func (a *recordingAdvancer) count(orderID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ids[orderID]
}

func TestScheduler_DispatchesDueOrders(t *testing.T) {
	t.Parallel()

	orders := NewMockOrderRepository()
	orders.AddOrder(&domain.PaymentOrder{
		ID:            "due-1",
		Status:        domain.OrderStatusProcessing,
		NextAttemptAt: time.Now().Add(-time.Second),
	})
	orders.AddOrder(&domain.PaymentOrder{
		ID:            "not-due",
		Status:        domain.OrderStatusProcessing,
		NextAttemptAt: time.Now().Add(time.Hour),
	})
	orders.AddOrder(&domain.PaymentOrder{
		ID:     "awaiting",
		Status: domain.OrderStatusAwaitingPayment,
	})

	advancer := newRecordingAdvancer()
	scheduler := worker.NewScheduler(orders, advancer, slog.New(slog.NewTextHandler(io.Discard, nil)), 20*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	ok := waitFor(t, 3*time.Second, func() bool {
		return advancer.count("due-1") > 0
	})
	if !ok {
		t.Fatal("expected the due order to be advanced")
	}

	if advancer.count("not-due") != 0 {
		t.Error("expected the future-dated order to be left alone")
	}
	if advancer.count("awaiting") != 0 {
		t.Error("expected the unconfirmed order to be left alone")
	}
}

func TestScheduler_BusyOrdersAreSkippedQuietly(t *testing.T) {
	t.Parallel()

	orders := NewMockOrderRepository()
	orders.AddOrder(&domain.PaymentOrder{
		ID:            "busy-1",
		Status:        domain.OrderStatusProcessing,
		NextAttemptAt: time.Now().Add(-time.Second),
	})

	advancer := newRecordingAdvancer()
	advancer.err = service.ErrOrderBusy
	scheduler := worker.NewScheduler(orders, advancer, slog.New(slog.NewTextHandler(io.Discard, nil)), 20*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	// The order stays due, so the scheduler keeps retrying it.
	ok := waitFor(t, 3*time.Second, func() bool {
		return advancer.count("busy-1") >= 2
	})
	if !ok {
		t.Fatal("expected the busy order to be retried on later passes")
	}
}
