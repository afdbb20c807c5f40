package interfaces

import (
	"context"
	"time"

	"github.com/fabworks/lasercut/internal/domain"
)

// StatusUpdateMessage fans out after every successful transition so
// subscribers can notify the customer.
type StatusUpdateMessage struct {
	OrderNumber string        `json:"order_number"`
	CustomerID  int           `json:"customer_id"`
	OldStatus   domain.Status `json:"old_status"`
	NewStatus   domain.Status `json:"new_status"`
	ChangedBy   string        `json:"changed_by"`
	Timestamp   time.Time     `json:"timestamp"`
}

type MessagePublisher interface {
	PublishStatusUpdate(ctx context.Context, msg StatusUpdateMessage) error
}

type StatusUpdateHandler func(ctx context.Context, body []byte) error

type MessageConsumer interface {
	ConsumeStatusUpdates(ctx context.Context, handler StatusUpdateHandler) error
}
