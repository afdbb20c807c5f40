package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// Service drives every status change of the admin back-office and the
// operator console. Legality lives in the domain transition table; this
// service loads the order, lets the domain apply the edge and its side
// effects, persists atomically, and fans out the notification.
type Service struct {
	orders    interfaces.OrderRepository
	users     interfaces.UserRepository
	files     interfaces.FileStore
	publisher interfaces.MessagePublisher
	logger    logger.Logger
	now       func() time.Time
}

func NewService(
	orders interfaces.OrderRepository,
	users interfaces.UserRepository,
	files interfaces.FileStore,
	publisher interfaces.MessagePublisher,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:    orders,
		users:     users,
		files:     files,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) ListOrders(ctx context.Context, filter interfaces.OrderFilter, sort interfaces.OrderSort, page interfaces.Page) ([]*domain.Order, int, error) {
	return s.orders.List(ctx, filter, sort, page)
}

// GetOrderDetail is the admin detail projection: history, signed proof URL
// and assignable operators all degrade gracefully.
func (s *Service) GetOrderDetail(ctx context.Context, number string) (*interfaces.OrderDetail, error) {
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	detail := &interfaces.OrderDetail{Order: order}

	if history, err := s.orders.GetStatusHistory(ctx, order.ID); err != nil {
		s.logger.Warn("history_load_failed", "Failed to load status history", "", map[string]interface{}{
			"order_number": order.Number,
		})
	} else {
		detail.History = history
	}

	if order.PaymentProofKey != nil {
		if url, err := s.files.SignedURL(ctx, *order.PaymentProofKey); err != nil {
			s.logger.Warn("signed_url_failed", "Failed to sign payment proof URL", "", map[string]interface{}{
				"order_number": order.Number,
			})
		} else {
			detail.PaymentProofURL = &url
		}
	}

	if operators, err := s.users.ListByRole(ctx, domain.RoleOperator); err != nil {
		s.logger.Warn("operator_list_failed", "Failed to load operators", "", nil)
	} else {
		detail.Operators = operators
	}

	return detail, nil
}

func (s *Service) ListOperators(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListByRole(ctx, domain.RoleOperator)
}

// ApprovePayment: confirmation_pending -> in_production.
func (s *Service) ApprovePayment(ctx context.Context, number string, actor *domain.User) (*domain.Order, error) {
	return s.transition(ctx, number, actor, func(order *domain.Order, now time.Time) error {
		return order.ApprovePayment(actor, now)
	}, "")
}

// RejectPayment: confirmation_pending -> pending, proof discarded, reason
// recorded.
func (s *Service) RejectPayment(ctx context.Context, number string, actor *domain.User, reason string) (*domain.Order, error) {
	return s.transition(ctx, number, actor, func(order *domain.Order, now time.Time) error {
		return order.RejectPayment(actor, reason, now)
	}, "Payment rejected: "+reason)
}

// CancelOrder: pending/confirmation_pending -> cancelled.
func (s *Service) CancelOrder(ctx context.Context, number string, actor *domain.User, reason string) (*domain.Order, error) {
	return s.transition(ctx, number, actor, func(order *domain.Order, now time.Time) error {
		return order.Cancel(actor, reason, now)
	}, "Cancelled: "+reason)
}

// MarkDelivered: shipped -> delivered.
func (s *Service) MarkDelivered(ctx context.Context, number string, actor *domain.User) (*domain.Order, error) {
	return s.transition(ctx, number, actor, func(order *domain.Order, now time.Time) error {
		return order.MarkDelivered(actor, now)
	}, "")
}

// AssignOperator is a guarded field update, not a transition; no history row
// is appended.
func (s *Service) AssignOperator(ctx context.Context, number string, actor *domain.User, operatorID int) (*domain.Order, error) {
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	operator, err := s.users.FindByID(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: operator %d", domain.ErrNotFound, operatorID)
	}

	if err := order.AssignOperator(actor, operator, s.now()); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateAssignment(ctx, order); err != nil {
		s.logger.Error("db_update_failed", "Failed to assign operator", "", nil, err)
		return nil, err
	}

	s.logger.Info("operator_assigned", fmt.Sprintf("Order %s assigned to %s", order.Number, operator.Email), "", map[string]interface{}{
		"order_number": order.Number,
		"operator_id":  operator.ID,
	})
	return order, nil
}

func (s *Service) ListAssignedJobs(ctx context.Context, operator *domain.User) ([]*domain.Order, error) {
	return s.orders.ListAssigned(ctx, operator.ID, domain.ProductionStatuses())
}

// AdvanceJob moves an assigned order one step along the production chain.
func (s *Service) AdvanceJob(ctx context.Context, number string, actor *domain.User, tracking *domain.Tracking) (*domain.Order, error) {
	order, err := s.transition(ctx, number, actor, func(order *domain.Order, now time.Time) error {
		_, err := order.AdvanceProduction(actor, tracking, now)
		return err
	}, "")
	if err != nil {
		return nil, err
	}

	if order.Status == domain.StatusShipped {
		if err := s.users.IncrementJobsCompleted(ctx, actor.ID); err != nil {
			s.logger.Warn("stats_update_failed", "Failed to increment operator job count", "", map[string]interface{}{
				"operator_id": actor.ID,
			})
		}
	}
	return order, nil
}

// transition is the shared write path: capture old status, apply the domain
// edge (all legality and side effects happen there), persist order + history
// in one transaction, then publish. Nothing is written when the domain call
// fails.
func (s *Service) transition(ctx context.Context, number string, actor *domain.User, apply func(*domain.Order, time.Time) error, note string) (*domain.Order, error) {
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	oldStatus := order.Status
	now := s.now()
	if err := apply(order, now); err != nil {
		return nil, err
	}

	entry := domain.StatusHistoryEntry{
		OrderID:   order.ID,
		OldStatus: &oldStatus,
		NewStatus: order.Status,
		ChangedBy: actor.Email,
		CreatedAt: now,
	}
	if note != "" {
		entry.Notes = &note
	}

	if err := s.orders.UpdateStatusWithLog(ctx, order, oldStatus, entry); err != nil {
		s.logger.Error("db_transaction_failed", "Failed to persist transition", "", map[string]interface{}{
			"order_number": order.Number,
			"from":         string(oldStatus),
			"to":           string(order.Status),
		}, err)
		return nil, err
	}

	s.logger.Info("status_changed", fmt.Sprintf("Order %s: %s -> %s", order.Number, oldStatus, order.Status), "", map[string]interface{}{
		"order_number": order.Number,
		"changed_by":   actor.Email,
	})

	msg := interfaces.StatusUpdateMessage{
		OrderNumber: order.Number,
		CustomerID:  order.CustomerID,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		ChangedBy:   actor.Email,
		Timestamp:   now,
	}
	if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
		// Notification delivery never blocks the transition.
		s.logger.Error("rabbitmq_publish_failed", "Failed to publish status update", "", nil, err)
	}

	return order, nil
}
