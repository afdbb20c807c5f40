package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// NotificationHandler turns status-change events into customer-facing
// notifications. Delivery channels beyond the log line (email, push) hang off
// this point.
type NotificationHandler struct {
	logger logger.Logger
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{logger: logger}
}

func (h *NotificationHandler) HandleStatusUpdate(ctx context.Context, body []byte) error {
	var msg interfaces.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse status update", "", nil, err)
		return err
	}

	h.logger.Info("notification_sent", fmt.Sprintf("Order %s is now %s", msg.OrderNumber, msg.NewStatus.Label()),
		msg.OrderNumber, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"customer_id":  msg.CustomerID,
			"old_status":   string(msg.OldStatus),
			"new_status":   string(msg.NewStatus),
			"changed_by":   msg.ChangedBy,
		})

	fmt.Printf("Notification for order %s: %s -> %s (by %s)\n",
		msg.OrderNumber, msg.OldStatus.Label(), msg.NewStatus.Label(), msg.ChangedBy)

	return nil
}
