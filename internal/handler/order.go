package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"corridor/internal/domain"
	"corridor/internal/service"
)

// OrderHandler handles HTTP requests for payment orders.
type OrderHandler struct {
	orderService *service.OrderService
	orchestrator *service.Orchestrator
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService, orchestrator *service.Orchestrator) *OrderHandler {
	return &OrderHandler{orderService: orderService, orchestrator: orchestrator}
}

// CreateOrderRequest is the HTTP request to create a payment order.
type CreateOrderRequest struct {
	TenantID       string  `json:"tenant_id" binding:"required"`
	PaymentLinkID  string  `json:"payment_link_id"`
	PayerContact   string  `json:"payer_contact"`
	SourceAmount   float64 `json:"source_amount" binding:"required"`
	SourceCurrency string  `json:"source_currency" binding:"required"`
	DestCurrency   string  `json:"dest_currency" binding:"required"`
}

// OrderResponse is the HTTP response for order operations.
type OrderResponse struct {
	OrderID         string        `json:"order_id"`
	TenantID        string        `json:"tenant_id"`
	PaymentLinkID   string        `json:"payment_link_id,omitempty"`
	Status          string        `json:"status"`
	SourceAmount    float64       `json:"source_amount"`
	SourceCurrency  string        `json:"source_currency"`
	DestCurrency    string        `json:"dest_currency"`
	SettledAmount   float64       `json:"settled_amount,omitempty"`
	SettledCurrency string        `json:"settled_currency,omitempty"`
	ExchangeRate    float64       `json:"exchange_rate,omitempty"`
	RateSource      string        `json:"rate_source,omitempty"`
	RateLockedAt    string        `json:"rate_locked_at,omitempty"`
	Fees            *FeeBreakdown `json:"fees,omitempty"`
	RetryCount      int           `json:"retry_count"`
	FailureCode     string        `json:"failure_code,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	NextAttemptAt   string        `json:"next_attempt_at,omitempty"`
	CreatedAt       string        `json:"created_at"`
	CompletedAt     string        `json:"completed_at,omitempty"`
}

// FeeBreakdown contains fee details in the response.
type FeeBreakdown struct {
	Platform float64 `json:"platform"`
	Provider float64 `json:"provider"`
	Network  float64 `json:"network"`
	Total    float64 `json:"total"`
}

// EventResponse is one entry of an order's event history.
type EventResponse struct {
	EventID    string `json:"event_id"`
	OrderID    string `json:"order_id"`
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	Payload    string `json:"payload,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		TenantID:       req.TenantID,
		PaymentLinkID:  req.PaymentLinkID,
		PayerContact:   req.PayerContact,
		SourceAmount:   req.SourceAmount,
		SourceCurrency: req.SourceCurrency,
		DestCurrency:   req.DestCurrency,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// ListEvents handles GET /v1/orders/:id/events
func (h *OrderHandler) ListEvents(c *gin.Context) {
	events, err := h.orderService.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]EventResponse, 0, len(events))
	for _, e := range events {
		response = append(response, EventResponse{
			EventID:    e.ID,
			OrderID:    e.OrderID,
			Seq:        e.Seq,
			Type:       string(e.Type),
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// ConfirmPayment handles POST /v1/orders/:id/confirm
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	orderID := c.Param("id")

	if err := h.orderService.ConfirmPayment(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// CancelOrderRequest is the HTTP request to cancel an order.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// RefundOrderRequest is the HTTP request to refund a completed order.
type RefundOrderRequest struct {
	Reason string `json:"reason"`
}

// RefundOrder handles POST /v1/orders/:id/refund
func (h *OrderHandler) RefundOrder(c *gin.Context) {
	var req RefundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	orderID := c.Param("id")

	if err := h.orchestrator.RefundOrder(c.Request.Context(), orderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *domain.PaymentOrder) OrderResponse {
	response := OrderResponse{
		OrderID:        order.ID,
		TenantID:       order.TenantID,
		PaymentLinkID:  order.PaymentLinkID,
		Status:         string(order.Status),
		SourceAmount:   order.SourceAmount,
		SourceCurrency: order.SourceCurrency,
		DestCurrency:   order.CorridorDest,
		RetryCount:     order.RetryCount,
		FailureCode:    order.FailureCode,
		FailureReason:  order.FailureReason,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}

	if order.Settled {
		response.SettledAmount = order.SettledAmount
		response.SettledCurrency = order.SettledCurrency
	}

	if order.RateLocked {
		response.ExchangeRate = order.ExchangeRate
		response.RateSource = order.RateSource
		response.RateLockedAt = order.RateLockedAt.Format(time.RFC3339)
		response.Fees = &FeeBreakdown{
			Platform: order.Fees.Platform,
			Provider: order.Fees.Provider,
			Network:  order.Fees.Network,
			Total:    order.Fees.Total,
		}
	}

	if !order.NextAttemptAt.IsZero() && order.Status == domain.OrderStatusProcessing {
		response.NextAttemptAt = order.NextAttemptAt.Format(time.RFC3339)
	}

	if !order.CompletedAt.IsZero() {
		response.CompletedAt = order.CompletedAt.Format(time.RFC3339)
	}

	return response
}
