package interfaces

import (
	"context"
	"time"

	"github.com/fabworks/lasercut/internal/domain"
)

// OrderFilter narrows the back-office order list. Zero values mean "no
// constraint".
type OrderFilter struct {
	Status      *domain.Status
	Search      string // matched against order number, customer name and email
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type OrderSortField string

const (
	SortByCreatedAt    OrderSortField = "created_at"
	SortByOrderNumber  OrderSortField = "order_number"
	SortByStatus       OrderSortField = "status"
	SortByTotalAmount  OrderSortField = "total_amount"
	SortByCustomerName OrderSortField = "customer_name"
)

func (f OrderSortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByOrderNumber, SortByStatus, SortByTotalAmount, SortByCustomerName:
		return true
	}
	return false
}

type OrderSort struct {
	Field      OrderSortField
	Descending bool
}

type Page struct {
	Limit  int
	Offset int
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
	FindByID(ctx context.Context, id int) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter, sort OrderSort, page Page) ([]*domain.Order, int, error)
	ListByCustomer(ctx context.Context, customerID int) ([]*domain.Order, error)
	ListAssigned(ctx context.Context, operatorID int, statuses []domain.Status) ([]*domain.Order, error)
	GenerateOrderNumber(ctx context.Context) (string, error)

	// UpdateStatusWithLog persists a completed transition: the order row
	// update (guarded by oldStatus at the row level) and the history append
	// happen in one transaction, so a partially-updated order is never
	// observable.
	UpdateStatusWithLog(ctx context.Context, order *domain.Order, oldStatus domain.Status, entry domain.StatusHistoryEntry) error

	UpdateAssignment(ctx context.Context, order *domain.Order) error
	GetStatusHistory(ctx context.Context, orderID int) ([]*domain.StatusHistoryEntry, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
	IncrementJobsCompleted(ctx context.Context, id int) error
}

type MaterialRepository interface {
	ListAll(ctx context.Context) ([]*domain.Material, error)
	FindByID(ctx context.Context, id int) (*domain.Material, error)
}
