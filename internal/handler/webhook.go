package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"corridor/internal/service"
)

// SignatureHeader carries the provider's HMAC over the raw callback body.
const SignatureHeader = "X-Provider-Signature"

// WebhookHandler handles asynchronous provider callbacks.
type WebhookHandler struct {
	orchestrator *service.Orchestrator
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(orchestrator *service.Orchestrator) *WebhookHandler {
	return &WebhookHandler{orchestrator: orchestrator}
}

// WebhookResponse acknowledges a processed callback.
type WebhookResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// HandleCallback handles POST /v1/webhooks/:provider
//
// The signature is verified against the raw body before anything else;
// a bad signature changes no state.
func (h *WebhookHandler) HandleCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	orderID, err := h.orchestrator.HandleCallback(
		c.Request.Context(),
		c.Param("provider"),
		body,
		c.GetHeader(SignatureHeader),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WebhookResponse{OrderID: orderID, Status: "processed"})
}
