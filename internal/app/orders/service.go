package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// Service is the customer storefront: order intake, the customer's own order
// list, detail projections, and payment-proof submission.
type Service struct {
	repo      interfaces.OrderRepository
	materials interfaces.MaterialRepository
	files     interfaces.FileStore
	publisher interfaces.MessagePublisher
	logger    logger.Logger

	taxRate      float64
	shippingCost float64
}

func NewService(
	repo interfaces.OrderRepository,
	materials interfaces.MaterialRepository,
	files interfaces.FileStore,
	publisher interfaces.MessagePublisher,
	logger logger.Logger,
	taxRate, shippingCost float64,
) *Service {
	return &Service{
		repo:         repo,
		materials:    materials,
		files:        files,
		publisher:    publisher,
		logger:       logger,
		taxRate:      taxRate,
		shippingCost: shippingCost,
	}
}

// CreateOrder prices every item from the material catalog, stores the design
// files, and persists the order with its items and the initial history row in
// one transaction. Client-submitted prices are never part of the command.
func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least 1 item", domain.ErrValidation)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for i, ic := range cmd.Items {
		material, err := s.materials.FindByID(ctx, ic.MaterialID)
		if err != nil {
			return nil, fmt.Errorf("%w: material %d", domain.ErrNotFound, ic.MaterialID)
		}
		if !material.SupportsThickness(ic.Thickness) {
			return nil, fmt.Errorf("%w: material %q is not available in %.1fmm", domain.ErrValidation, material.Name, ic.Thickness)
		}

		unitPrice, err := material.UnitPrice(ic.AreaCm2)
		if err != nil {
			return nil, err
		}

		if ic.DesignFileName == "" || ic.DesignFile == nil {
			return nil, fmt.Errorf("%w: item %d requires a design file", domain.ErrValidation, i)
		}
		key, err := s.files.Save(ctx, ic.DesignFileName, ic.DesignFile)
		if err != nil {
			return nil, fmt.Errorf("failed to store design file: %w", err)
		}

		items = append(items, domain.OrderItem{
			MaterialID:     ic.MaterialID,
			Thickness:      ic.Thickness,
			Quantity:       ic.Quantity,
			UnitPrice:      unitPrice,
			DesignFileName: ic.DesignFileName,
			DesignFileKey:  key,
		})
	}

	order, err := domain.NewOrder(cmd.CustomerID, items, cmd.ShippingAddress, s.taxRate, s.shippingCost)
	if err != nil {
		s.logger.Error("validation_failed", "Order validation failed", "", nil, err)
		return nil, err
	}

	// The generated number is a daily counter, so two concurrent creates can
	// race to the same one; the loser retries with a fresh number.
	for attempt := 0; ; attempt++ {
		number, err := s.repo.GenerateOrderNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate order number: %w", err)
		}
		order.Number = number

		err = s.repo.Create(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicate) && attempt < 2 {
			continue
		}
		s.logger.Error("db_transaction_failed", "Failed to create order", "", nil, err)
		return nil, err
	}

	s.logger.Info("order_created", "Order created", "", map[string]interface{}{
		"order_number": order.Number,
		"total_amount": order.TotalAmount,
	})
	return order, nil
}

func (s *Service) ListCustomerOrders(ctx context.Context, customerID int) ([]*domain.Order, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// GetOrder loads the detail projection for a viewer. History and signed file
// URLs are auxiliary: their failures are logged and leave the field empty
// instead of blocking the primary record.
func (s *Service) GetOrder(ctx context.Context, number string, viewer *domain.User) (*interfaces.OrderDetail, error) {
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(order, viewer); err != nil {
		return nil, err
	}

	detail := &interfaces.OrderDetail{Order: order}

	history, err := s.repo.GetStatusHistory(ctx, order.ID)
	if err != nil {
		s.logger.Warn("history_load_failed", "Failed to load status history", "", map[string]interface{}{
			"order_number": order.Number,
		})
	} else {
		detail.History = history
	}

	detail.DesignFileURLs = make(map[int]string, len(order.Items))
	for _, item := range order.Items {
		url, err := s.files.SignedURL(ctx, item.DesignFileKey)
		if err != nil {
			s.logger.Warn("signed_url_failed", "Failed to sign design file URL", "", map[string]interface{}{
				"order_number": order.Number,
				"item_id":      item.ID,
			})
			continue
		}
		detail.DesignFileURLs[item.ID] = url
	}

	if order.PaymentProofKey != nil {
		url, err := s.files.SignedURL(ctx, *order.PaymentProofKey)
		if err != nil {
			s.logger.Warn("signed_url_failed", "Failed to sign payment proof URL", "", map[string]interface{}{
				"order_number": order.Number,
			})
		} else {
			detail.PaymentProofURL = &url
		}
	}

	return detail, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, number string, viewer *domain.User) ([]*domain.StatusHistoryEntry, error) {
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(order, viewer); err != nil {
		return nil, err
	}
	return s.repo.GetStatusHistory(ctx, order.ID)
}

// SubmitPaymentProof stores the uploaded proof and runs the one
// customer-triggered transition, pending -> confirmation_pending.
func (s *Service) SubmitPaymentProof(ctx context.Context, number string, actor *domain.User, fileName string, file io.Reader) (*domain.Order, error) {
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	// Guards run before the upload is stored, so a rejected submission never
	// leaves an orphaned blob behind.
	if err := order.CanSubmitPaymentProof(actor); err != nil {
		return nil, err
	}

	key, err := s.files.Save(ctx, fileName, file)
	if err != nil {
		return nil, fmt.Errorf("failed to store payment proof: %w", err)
	}

	oldStatus := order.Status
	now := time.Now()
	if err := order.SubmitPaymentProof(actor, key, now); err != nil {
		return nil, err
	}

	entry := domain.StatusHistoryEntry{
		OrderID:   order.ID,
		OldStatus: &oldStatus,
		NewStatus: order.Status,
		ChangedBy: actor.Email,
		CreatedAt: now,
	}
	if err := s.repo.UpdateStatusWithLog(ctx, order, oldStatus, entry); err != nil {
		return nil, err
	}

	s.publishStatusUpdate(ctx, order, oldStatus, actor.Email, now)
	return order, nil
}

func (s *Service) authorizeView(order *domain.Order, viewer *domain.User) error {
	if viewer == nil {
		return domain.ErrUnauthorized
	}
	switch viewer.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleOperator:
		if order.AssignedOperatorID != nil && *order.AssignedOperatorID == viewer.ID {
			return nil
		}
	case domain.RoleCustomer:
		if order.CustomerID == viewer.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s is not visible to this user", domain.ErrUnauthorized, order.Number)
}

func (s *Service) publishStatusUpdate(ctx context.Context, order *domain.Order, oldStatus domain.Status, changedBy string, at time.Time) {
	msg := interfaces.StatusUpdateMessage{
		OrderNumber: order.Number,
		CustomerID:  order.CustomerID,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		ChangedBy:   changedBy,
		Timestamp:   at,
	}
	if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
		// Notification delivery never blocks the transition.
		s.logger.Error("rabbitmq_publish_failed", "Failed to publish status update", "", nil, err)
	}
}
