// Package worker re-invokes the orchestrator for orders whose next attempt
// is due. Long external waits never hold the per-order lock; this scheduler
// is how an order picks back up after a backoff delay.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"corridor/internal/repository"
	"corridor/internal/service"
)

// Advancer progresses one order by one saga step.
type Advancer interface {
	Advance(ctx context.Context, orderID string) error
}

// Scheduler polls for due orders and dispatches them to a bounded worker
// pool sized to provider-side rate limits.
type Scheduler struct {
	orders      repository.OrderRepository
	advancer    Advancer
	logger      *slog.Logger
	interval    time.Duration
	workerCount int
}

// NewScheduler creates a new Scheduler.
func NewScheduler(orders repository.OrderRepository, advancer Advancer, logger *slog.Logger, interval time.Duration, workerCount int) *Scheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Scheduler{
		orders:      orders,
		advancer:    advancer,
		logger:      logger,
		interval:    interval,
		workerCount: workerCount,
	}
}

// Run polls and dispatches until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	queue := make(chan string)
	for i := 0; i < s.workerCount; i++ {
		go s.work(ctx, queue)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(queue)
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			ids, err := s.orders.ListDue(ctx, time.Now(), s.workerCount*4)
			if err != nil {
				s.logger.Error("scheduler list due orders", "err", err)
				continue
			}
			for _, id := range ids {
				select {
				case queue <- id:
				case <-ctx.Done():
					close(queue)
					return
				}
			}
		}
	}
}

func (s *Scheduler) work(ctx context.Context, queue <-chan string) {
	for orderID := range queue {
		err := s.advancer.Advance(ctx, orderID)
		if err != nil && !errors.Is(err, service.ErrOrderBusy) {
			s.logger.Error("advance order", "order_id", orderID, "err", err)
		}
	}
}
