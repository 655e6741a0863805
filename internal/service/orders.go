package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corridor/internal/domain"
	"corridor/internal/repository"
)

// OrderService handles the order lifecycle outside the saga: creation from
// the payment-initiated trigger, reads, and pre-leg cancellation.
type OrderService struct {
	uow          repository.UnitOfWork
	orderRepo    repository.OrderRepository
	eventRepo    repository.EventRepository
	routing      *domain.RoutingTable
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	uow repository.UnitOfWork,
	orderRepo repository.OrderRepository,
	eventRepo repository.EventRepository,
	routing *domain.RoutingTable,
	orchestrator *Orchestrator,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		uow:          uow,
		orderRepo:    orderRepo,
		eventRepo:    eventRepo,
		routing:      routing,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// CreateOrderRequest carries the payment-initiated trigger from the
// checkout surface.
type CreateOrderRequest struct {
	TenantID       string
	PaymentLinkID  string
	PayerContact   string
	SourceAmount   float64
	SourceCurrency string
	DestCurrency   string
}

// CreateOrder creates a payment order awaiting payer confirmation and
// appends its Created event in the same atomic unit.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.PaymentOrder, error) {
	if req.TenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if req.SourceAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.SourceCurrency == "" || req.DestCurrency == "" {
		return nil, ErrInvalidCurrency
	}
	if _, ok := s.routing.Lookup(req.SourceCurrency, req.DestCurrency); !ok {
		return nil, ErrUnknownCorridor
	}

	order := &domain.PaymentOrder{
		ID:             uuid.New().String(),
		TenantID:       req.TenantID,
		PaymentLinkID:  req.PaymentLinkID,
		PayerContact:   req.PayerContact,
		SourceAmount:   req.SourceAmount,
		SourceCurrency: req.SourceCurrency,
		CorridorSource: req.SourceCurrency,
		CorridorDest:   req.DestCurrency,
		Status:         domain.OrderStatusCreated,
		CreatedAt:      time.Now(),
	}

	// The trigger that creates the order is the payment-initiated signal,
	// so the order lands in AWAITING_PAYMENT through the same transition
	// function every later step uses.
	next, err := domain.Transition(order.Status, domain.EventPaymentInitiated)
	if err != nil {
		return nil, err
	}
	order.Status = next

	err = s.uow.Within(ctx, func(tx repository.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"tenant_id":     order.TenantID,
			"source_amount": order.SourceAmount,
			"corridor":      order.CorridorSource + "->" + order.CorridorDest,
		})

		return tx.Events().Append(ctx, &domain.PaymentEvent{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			Type:       domain.EventTypeCreated,
			Payload:    string(payload),
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment order created",
		"order_id", order.ID,
		"tenant_id", order.TenantID,
		"corridor", order.CorridorSource+"->"+order.CorridorDest,
	)

	return order, nil
}

// ConfirmPayment signals that the payer completed checkout; the saga takes
// the order from here.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}
	return s.orchestrator.Advance(ctx, orderID)
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// ListEvents returns the order's event log in sequence order.
func (s *OrderService) ListEvents(ctx context.Context, orderID string) ([]*domain.PaymentEvent, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.eventRepo.ListByOrder(ctx, orderID)
}

// CancelOrder cancels an order that has not yet initiated a provider leg.
// Once leg 1 is accepted by a provider, cancellation goes through manual
// intervention instead.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) (*domain.PaymentOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	var cancelled *domain.PaymentOrder
	err := s.uow.Within(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if !domain.Cancellable(order.Status) {
			return ErrOrderNotCancellable
		}

		next, err := domain.Transition(order.Status, domain.EventOrderCancelled)
		if err != nil {
			return err
		}
		order.Status = next
		order.FailureCode = "cancelled"
		order.FailureReason = reason
		order.CompletedAt = time.Now()

		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		cancelled = order

		payload, _ := json.Marshal(map[string]any{"reason": reason})

		return tx.Events().Append(ctx, &domain.PaymentEvent{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			Type:       domain.EventTypeCancelled,
			Payload:    string(payload),
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}
