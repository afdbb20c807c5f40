package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// OperatorHandler is the production-floor console: the operator's job queue
// and the single advance action.
type OperatorHandler struct {
	service interfaces.WorkflowService
	logger  logger.Logger
}

func NewOperatorHandler(service interfaces.WorkflowService, logger logger.Logger) *OperatorHandler {
	return &OperatorHandler{
		service: service,
		logger:  logger,
	}
}

type AdvanceRequest struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
}

func (h *OperatorHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	operator := UserFromContext(r.Context())

	orders, err := h.service.ListAssignedJobs(r.Context(), operator)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderToView(o, nil))
	}
	respondJSON(w, http.StatusOK, views)
}

// AdvanceJob moves an assigned order one step along the production chain.
// The body is optional; tracking metadata is only meaningful on the shipping
// step.
func (h *OperatorHandler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	var tracking *domain.Tracking
	if req.TrackingNumber != "" || req.TrackingURL != "" {
		tracking = &domain.Tracking{
			Number: strings.TrimSpace(req.TrackingNumber),
			URL:    strings.TrimSpace(req.TrackingURL),
		}
	}

	order, err := h.service.AdvanceJob(r.Context(), r.PathValue("number"), UserFromContext(r.Context()), tracking)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}
