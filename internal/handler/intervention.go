package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"corridor/internal/domain"
	"corridor/internal/service"
)

// InterventionHandler handles HTTP requests for manual intervention cases.
type InterventionHandler struct {
	interventionService *service.InterventionService
}

// NewInterventionHandler creates a new InterventionHandler.
func NewInterventionHandler(interventionService *service.InterventionService) *InterventionHandler {
	return &InterventionHandler{interventionService: interventionService}
}

// CaseResponse is the HTTP response for intervention case operations.
type CaseResponse struct {
	CaseID          string `json:"case_id"`
	OrderID         string `json:"order_id"`
	Reason          string `json:"reason"`
	Detail          string `json:"detail,omitempty"`
	AssignedTo      string `json:"assigned_to,omitempty"`
	Priority        string `json:"priority"`
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
	DueBy           string `json:"due_by,omitempty"`
	CreatedAt       string `json:"created_at"`
	ResolvedAt      string `json:"resolved_at,omitempty"`
}

// ResolveCaseRequest is the HTTP request to resolve a case.
type ResolveCaseRequest struct {
	Action   string `json:"action" binding:"required"`
	Notes    string `json:"notes"`
	Operator string `json:"operator" binding:"required"`
}

// ListOpen handles GET /v1/interventions
func (h *InterventionHandler) ListOpen(c *gin.Context) {
	cases, err := h.interventionService.ListOpen(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CaseResponse, 0, len(cases))
	for _, ic := range cases {
		response = append(response, toCaseResponse(ic))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetCase handles GET /v1/interventions/:id
func (h *InterventionHandler) GetCase(c *gin.Context) {
	ic, err := h.interventionService.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCaseResponse(ic))
}

// ResolveCase handles POST /v1/interventions/:id/resolve
func (h *InterventionHandler) ResolveCase(c *gin.Context) {
	var req ResolveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	caseID := c.Param("id")

	err := h.interventionService.Resolve(c.Request.Context(), service.ResolveRequest{
		CaseID:   caseID,
		Action:   domain.ResolutionAction(req.Action),
		Notes:    req.Notes,
		Operator: req.Operator,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ic, err := h.interventionService.GetCase(c.Request.Context(), caseID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCaseResponse(ic))
}

func toCaseResponse(ic *domain.ManualInterventionCase) CaseResponse {
	response := CaseResponse{
		CaseID:          ic.ID,
		OrderID:         ic.OrderID,
		Reason:          ic.Reason,
		Detail:          ic.Detail,
		AssignedTo:      ic.AssignedTo,
		Priority:        string(ic.Priority),
		Status:          string(ic.Status),
		ResolutionNotes: ic.ResolutionNotes,
		CreatedAt:       ic.CreatedAt.Format(time.RFC3339),
	}

	if !ic.DueBy.IsZero() {
		response.DueBy = ic.DueBy.Format(time.RFC3339)
	}

	if !ic.ResolvedAt.IsZero() {
		response.ResolvedAt = ic.ResolvedAt.Format(time.RFC3339)
	}

	return response
}
