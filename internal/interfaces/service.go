package interfaces

import (
	"context"
	"io"

	"github.com/fabworks/lasercut/internal/domain"
)

// Commands accepted by the storefront service.
type CreateOrderCommand struct {
	CustomerID      int
	Items           []CreateOrderItemCommand
	ShippingAddress domain.Address
}

type CreateOrderItemCommand struct {
	MaterialID     int
	Thickness      float64
	Quantity       int
	AreaCm2        float64
	DesignFileName string
	DesignFile     io.Reader
}

// OrderDetail is the full projection a detail view loads: the record itself
// plus ancillary data that degrades gracefully (empty history, absent URLs)
// when its lookup fails.
type OrderDetail struct {
	Order           *domain.Order
	History         []*domain.StatusHistoryEntry
	PaymentProofURL *string
	DesignFileURLs  map[int]string // order item id -> signed URL
	Operators       []*domain.User // assignable operators, admin view only
}

// OrderService is the customer storefront surface.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
	ListCustomerOrders(ctx context.Context, customerID int) ([]*domain.Order, error)
	GetOrder(ctx context.Context, number string, viewer *domain.User) (*OrderDetail, error)
	GetStatusHistory(ctx context.Context, number string, viewer *domain.User) ([]*domain.StatusHistoryEntry, error)
	SubmitPaymentProof(ctx context.Context, number string, actor *domain.User, fileName string, file io.Reader) (*domain.Order, error)
}

// WorkflowService gates every status change of the admin back-office and the
// operator console behind the domain transition table.
type WorkflowService interface {
	ListOrders(ctx context.Context, filter OrderFilter, sort OrderSort, page Page) ([]*domain.Order, int, error)
	GetOrderDetail(ctx context.Context, number string) (*OrderDetail, error)
	ListOperators(ctx context.Context) ([]*domain.User, error)

	ApprovePayment(ctx context.Context, number string, actor *domain.User) (*domain.Order, error)
	RejectPayment(ctx context.Context, number string, actor *domain.User, reason string) (*domain.Order, error)
	CancelOrder(ctx context.Context, number string, actor *domain.User, reason string) (*domain.Order, error)
	AssignOperator(ctx context.Context, number string, actor *domain.User, operatorID int) (*domain.Order, error)
	MarkDelivered(ctx context.Context, number string, actor *domain.User) (*domain.Order, error)

	ListAssignedJobs(ctx context.Context, operator *domain.User) ([]*domain.Order, error)
	AdvanceJob(ctx context.Context, number string, actor *domain.User, tracking *domain.Tracking) (*domain.Order, error)
}

// CatalogService serves the material catalog.
type CatalogService interface {
	ListMaterials(ctx context.Context) ([]*domain.Material, error)
}
