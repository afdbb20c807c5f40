package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// AdminHandler is the back-office surface: filtered order lists, payment
// review, cancellation, operator assignment and delivery confirmation.
type AdminHandler struct {
	service interfaces.WorkflowService
	logger  logger.Logger
}

func NewAdminHandler(service interfaces.WorkflowService, logger logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

type OrderListResponse struct {
	Orders []OrderView `json:"orders"`
	Total  int         `json:"total"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type AssignRequest struct {
	OperatorID int `json:"operator_id"`
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, sort, page, errs := parseListQuery(r)
	if len(errs) > 0 {
		respondError(w, "Validation failed", http.StatusBadRequest, errs)
		return
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter, sort, page)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderToView(o, nil))
	}
	respondJSON(w, http.StatusOK, OrderListResponse{Orders: views, Total: total})
}

func parseListQuery(r *http.Request) (interfaces.OrderFilter, interfaces.OrderSort, interfaces.Page, []ValidationError) {
	var (
		filter interfaces.OrderFilter
		errs   []ValidationError
	)

	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: "status", Message: "unknown status"})
		} else {
			filter.Status = &status
		}
	}
	filter.Search = strings.TrimSpace(q.Get("search"))

	if raw := q.Get("created_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: "created_from", Message: "must be RFC3339"})
		} else {
			filter.CreatedFrom = &t
		}
	}
	if raw := q.Get("created_to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: "created_to", Message: "must be RFC3339"})
		} else {
			filter.CreatedTo = &t
		}
	}

	sort := interfaces.OrderSort{Field: interfaces.SortByCreatedAt, Descending: true}
	if raw := q.Get("sort"); raw != "" {
		field := interfaces.OrderSortField(raw)
		if !field.Valid() {
			errs = append(errs, ValidationError{Field: "sort", Message: "unknown sort field"})
		} else {
			sort.Field = field
			sort.Descending = q.Get("dir") == "desc"
		}
	}

	page := interfaces.Page{Limit: 50}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 1 || n > 200 {
			errs = append(errs, ValidationError{Field: "limit", Message: "must be 1-200"})
		} else {
			page.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 0 {
			errs = append(errs, ValidationError{Field: "offset", Message: "must be non-negative"})
		} else {
			page.Offset = n
		}
	}

	return filter, sort, page, errs
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetOrderDetail(r.Context(), r.PathValue("number"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detailToView(detail))
}

func (h *AdminHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.service.ListOperators(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]UserView, 0, len(operators))
	for _, op := range operators {
		views = append(views, userToView(op))
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.ApprovePayment(r.Context(), r.PathValue("number"), UserFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}

func (h *AdminHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	order, err := h.service.RejectPayment(r.Context(), r.PathValue("number"), UserFromContext(r.Context()), reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}

func (h *AdminHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), r.PathValue("number"), UserFromContext(r.Context()), reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}

func (h *AdminHandler) AssignOperator(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if req.OperatorID <= 0 {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{
			{Field: "operator_id", Message: "operator is required"},
		})
		return
	}

	order, err := h.service.AssignOperator(r.Context(), r.PathValue("number"), UserFromContext(r.Context()), req.OperatorID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}

func (h *AdminHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.MarkDelivered(r.Context(), r.PathValue("number"), UserFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}

// decodeReason reads the reason payload, rejecting an empty reason before
// the service is even called.
func (h *AdminHandler) decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return "", false
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{
			{Field: "reason", Message: "reason is required"},
		})
		return "", false
	}
	return reason, true
}
