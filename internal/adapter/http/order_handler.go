package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// maxUploadBytes caps design file and payment proof uploads.
const maxUploadBytes = 32 << 20

// OrderHandler is the customer storefront surface.
type OrderHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type CreateOrderRequest struct {
	Items           []CreateOrderItemRequest `json:"items"`
	ShippingAddress AddressView              `json:"shipping_address"`
}

type CreateOrderItemRequest struct {
	MaterialID int     `json:"material_id"`
	Thickness  float64 `json:"thickness"`
	Quantity   int     `json:"quantity"`
	AreaCm2    float64 `json:"area_cm2"`
}

// CreateOrder accepts a multipart form: an `order` JSON part plus one
// `design_file_<i>` part per item.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	customer := UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}

	var req CreateOrderRequest
	if err := json.Unmarshal([]byte(r.FormValue("order")), &req); err != nil {
		respondError(w, "Invalid order payload", http.StatusBadRequest, nil)
		return
	}

	if validationErrors := validateCreateOrderRequest(req); len(validationErrors) > 0 {
		respondError(w, "Validation failed", http.StatusBadRequest, validationErrors)
		return
	}

	cmd := interfaces.CreateOrderCommand{
		CustomerID: customer.ID,
		ShippingAddress: addressFromView(req.ShippingAddress),
	}
	for i, item := range req.Items {
		file, header, err := r.FormFile(fmt.Sprintf("design_file_%d", i))
		if err != nil {
			respondError(w, fmt.Sprintf("design file for item %d is required", i), http.StatusBadRequest, nil)
			return
		}
		defer file.Close()

		cmd.Items = append(cmd.Items, interfaces.CreateOrderItemCommand{
			MaterialID:     item.MaterialID,
			Thickness:      item.Thickness,
			Quantity:       item.Quantity,
			AreaCm2:        item.AreaCm2,
			DesignFileName: header.Filename,
			DesignFile:     file,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", RequestIDFromContext(r.Context()), nil, err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, orderToView(order, nil))
}

func validateCreateOrderRequest(req CreateOrderRequest) []ValidationError {
	var errs []ValidationError

	if len(req.Items) < 1 {
		errs = append(errs, ValidationError{
			Field:   "items",
			Message: "order must contain at least 1 item",
		})
	}
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.MaterialID <= 0 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".material_id",
				Message: "material is required",
			})
		}
		if item.Quantity < 1 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".quantity",
				Message: "quantity must be at least 1",
			})
		}
		if item.AreaCm2 <= 0 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".area_cm2",
				Message: "design area must be positive",
			})
		}
	}

	if strings.TrimSpace(req.ShippingAddress.Line1) == "" {
		errs = append(errs, ValidationError{
			Field:   "shipping_address.line1",
			Message: "address line is required",
		})
	}
	if strings.TrimSpace(req.ShippingAddress.City) == "" {
		errs = append(errs, ValidationError{
			Field:   "shipping_address.city",
			Message: "city is required",
		})
	}
	if strings.TrimSpace(req.ShippingAddress.Country) == "" {
		errs = append(errs, ValidationError{
			Field:   "shipping_address.country",
			Message: "country is required",
		})
	}

	return errs
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customer := UserFromContext(r.Context())

	orders, err := h.service.ListCustomerOrders(r.Context(), customer.ID)
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

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	detail, err := h.service.GetOrder(r.Context(), number, UserFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detailToView(detail))
}

func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	history, err := h.service.GetStatusHistory(r.Context(), number, UserFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, historyToView(history))
}

// SubmitPaymentProof accepts a multipart form with a `file` part.
func (h *OrderHandler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "payment proof file is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	order, err := h.service.SubmitPaymentProof(r.Context(), number, UserFromContext(r.Context()), header.Filename, file)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToView(order, nil))
}
