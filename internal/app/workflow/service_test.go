package workflow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	args := m.Called(ctx, number)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id int) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter interfaces.OrderFilter, sort interfaces.OrderSort, page interfaces.Page) ([]*domain.Order, int, error) {
	args := m.Called(ctx, filter, sort, page)
	if o := args.Get(0); o != nil {
		return o.([]*domain.Order), args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) ListByCustomer(ctx context.Context, customerID int) ([]*domain.Order, error) {
	args := m.Called(ctx, customerID)
	if o := args.Get(0); o != nil {
		return o.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) ListAssigned(ctx context.Context, operatorID int, statuses []domain.Status) ([]*domain.Order, error) {
	args := m.Called(ctx, operatorID, statuses)
	if o := args.Get(0); o != nil {
		return o.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatusWithLog(ctx context.Context, order *domain.Order, oldStatus domain.Status, entry domain.StatusHistoryEntry) error {
	args := m.Called(ctx, order, oldStatus, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateAssignment(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.StatusHistoryEntry, error) {
	args := m.Called(ctx, orderID)
	if h := args.Get(0); h != nil {
		return h.([]*domain.StatusHistoryEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	args := m.Called(ctx, role)
	if u := args.Get(0); u != nil {
		return u.([]*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) IncrementJobsCompleted(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Save(ctx context.Context, fileName string, r io.Reader) (string, error) {
	args := m.Called(ctx, fileName, r)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) SignedURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) OpenSigned(ctx context.Context, token string) (io.ReadCloser, string, error) {
	args := m.Called(ctx, token)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func adminUser() *domain.User {
	return &domain.User{ID: 2, Email: "admin@fab.kz", Role: domain.RoleAdmin}
}

func operatorUser(id int) *domain.User {
	return &domain.User{ID: id, Email: "op@fab.kz", Role: domain.RoleOperator}
}

func pendingConfirmationOrder() *domain.Order {
	proof := "proof-key"
	return &domain.Order{
		ID:              10,
		Number:          "LC_20260830_001",
		CustomerID:      7,
		Status:          domain.StatusConfirmationPending,
		PaymentProofKey: &proof,
	}
}

func assignedOrder(operatorID int, status domain.Status) *domain.Order {
	return &domain.Order{
		ID:                 10,
		Number:             "LC_20260830_001",
		CustomerID:         7,
		Status:             status,
		AssignedOperatorID: &operatorID,
	}
}

func newTestService(orders *MockOrderRepository, users *MockUserRepository, files *MockFileStore, publisher *MockPublisher) *Service {
	return NewService(orders, users, files, publisher, logger.New("test"))
}

func TestApprovePayment(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	order := pendingConfirmationOrder()
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, order, domain.StatusConfirmationPending,
		mock.MatchedBy(func(e domain.StatusHistoryEntry) bool {
			return e.OrderID == 10 &&
				e.OldStatus != nil && *e.OldStatus == domain.StatusConfirmationPending &&
				e.NewStatus == domain.StatusInProduction &&
				e.ChangedBy == "admin@fab.kz"
		})).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.MatchedBy(func(msg interfaces.StatusUpdateMessage) bool {
		return msg.OrderNumber == order.Number && msg.NewStatus == domain.StatusInProduction
	})).Return(nil)

	got, err := svc.ApprovePayment(context.Background(), order.Number, adminUser())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProduction, got.Status)
	require.NotNil(t, got.PaymentConfirmedBy)
	assert.Equal(t, 2, *got.PaymentConfirmedBy)

	orders.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRejectPaymentRecordsReasonAndDiscardsProof(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	order := pendingConfirmationOrder()
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, order, domain.StatusConfirmationPending,
		mock.MatchedBy(func(e domain.StatusHistoryEntry) bool {
			return e.NewStatus == domain.StatusPending &&
				e.Notes != nil && *e.Notes == "Payment rejected: blurry proof"
		})).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.RejectPayment(context.Background(), order.Number, adminUser(), "blurry proof")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.PaymentProofKey)
	require.NotNil(t, got.OperatorNotes)
	assert.Equal(t, "Payment rejected: blurry proof", *got.OperatorNotes)

	orders.AssertExpectations(t)
}

func TestIllegalTransitionWritesNothing(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	order := assignedOrder(4, domain.StatusCutting)
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)

	// Delivery straight from cutting is not an edge.
	_, err := svc.MarkDelivered(context.Background(), order.Number, adminUser())
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	orders.AssertNotCalled(t, "UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishStatusUpdate", mock.Anything, mock.Anything)
}

func TestCancelOrder(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	order := &domain.Order{ID: 10, Number: "LC_20260830_001", CustomerID: 7, Status: domain.StatusPending}
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, order, domain.StatusPending,
		mock.MatchedBy(func(e domain.StatusHistoryEntry) bool {
			return e.NewStatus == domain.StatusCancelled &&
				e.Notes != nil && *e.Notes == "Cancelled: customer request"
		})).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.CancelOrder(context.Background(), order.Number, adminUser(), "customer request")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	orders.AssertExpectations(t)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	order := pendingConfirmationOrder()
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	got, err := svc.ApprovePayment(context.Background(), order.Number, adminUser())
	require.NoError(t, err, "notification delivery must not block the transition")
	assert.Equal(t, domain.StatusInProduction, got.Status)
}

func TestAdvanceJob(t *testing.T) {
	orders := new(MockOrderRepository)
	users := new(MockUserRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, users, new(MockFileStore), publisher)

	op := operatorUser(4)
	order := assignedOrder(4, domain.StatusInProduction)
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, order, domain.StatusInProduction,
		mock.MatchedBy(func(e domain.StatusHistoryEntry) bool {
			return e.NewStatus == domain.StatusCutting && e.ChangedBy == op.Email
		})).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.AdvanceJob(context.Background(), order.Number, op, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCutting, got.Status)
	assert.NotNil(t, got.ProductionStartedAt)

	users.AssertNotCalled(t, "IncrementJobsCompleted", mock.Anything, mock.Anything)
	orders.AssertExpectations(t)
}

func TestAdvanceJobToShippedIncrementsJobCount(t *testing.T) {
	orders := new(MockOrderRepository)
	users := new(MockUserRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, users, new(MockFileStore), publisher)

	op := operatorUser(4)
	order := assignedOrder(4, domain.StatusPackaging)
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.Anything).Return(nil)
	users.On("IncrementJobsCompleted", mock.Anything, 4).Return(nil)

	tracking := &domain.Tracking{Number: "KZ123456"}
	got, err := svc.AdvanceJob(context.Background(), order.Number, op, tracking)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "KZ123456", *got.TrackingNumber)

	users.AssertExpectations(t)
}

func TestAdvanceJobUnassignedOperator(t *testing.T) {
	orders := new(MockOrderRepository)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), new(MockPublisher))

	order := assignedOrder(4, domain.StatusCutting)
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)

	_, err := svc.AdvanceJob(context.Background(), order.Number, operatorUser(9), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	orders.AssertNotCalled(t, "UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignOperator(t *testing.T) {
	orders := new(MockOrderRepository)
	users := new(MockUserRepository)
	svc := newTestService(orders, users, new(MockFileStore), new(MockPublisher))

	order := &domain.Order{ID: 10, Number: "LC_20260830_001", Status: domain.StatusInProduction}
	op := operatorUser(4)
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	users.On("FindByID", mock.Anything, 4).Return(op, nil)
	orders.On("UpdateAssignment", mock.Anything, order).Return(nil)

	got, err := svc.AssignOperator(context.Background(), order.Number, adminUser(), 4)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedOperatorID)
	assert.Equal(t, 4, *got.AssignedOperatorID)

	// Assignment is a field update, not a transition.
	orders.AssertNotCalled(t, "UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignOperatorUnknownOperator(t *testing.T) {
	orders := new(MockOrderRepository)
	users := new(MockUserRepository)
	svc := newTestService(orders, users, new(MockFileStore), new(MockPublisher))

	order := &domain.Order{ID: 10, Number: "LC_20260830_001", Status: domain.StatusInProduction}
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	users.On("FindByID", mock.Anything, 99).Return(nil, errors.New("no rows"))

	_, err := svc.AssignOperator(context.Background(), order.Number, adminUser(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrderDetailDegradesGracefully(t *testing.T) {
	orders := new(MockOrderRepository)
	users := new(MockUserRepository)
	files := new(MockFileStore)
	svc := newTestService(orders, users, files, new(MockPublisher))

	order := pendingConfirmationOrder()
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("GetStatusHistory", mock.Anything, order.ID).Return(nil, errors.New("timeout"))
	files.On("SignedURL", mock.Anything, "proof-key").Return("", errors.New("stat failed"))
	users.On("ListByRole", mock.Anything, domain.RoleOperator).Return(nil, errors.New("timeout"))

	detail, err := svc.GetOrderDetail(context.Background(), order.Number)
	require.NoError(t, err, "auxiliary read failures must not fail the detail view")
	assert.Equal(t, order, detail.Order)
	assert.Empty(t, detail.History)
	assert.Nil(t, detail.PaymentProofURL)
	assert.Empty(t, detail.Operators)
}

func TestGetOrderDetailNotFound(t *testing.T) {
	orders := new(MockOrderRepository)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), new(MockPublisher))

	orders.On("FindByNumber", mock.Anything, "LC_MISSING").Return(nil, domain.ErrNotFound)

	_, err := svc.GetOrderDetail(context.Background(), "LC_MISSING")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionTimestampComesFromClock(t *testing.T) {
	orders := new(MockOrderRepository)
	publisher := new(MockPublisher)
	svc := newTestService(orders, new(MockUserRepository), new(MockFileStore), publisher)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	order := pendingConfirmationOrder()
	orders.On("FindByNumber", mock.Anything, order.Number).Return(order, nil)
	orders.On("UpdateStatusWithLog", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(e domain.StatusHistoryEntry) bool {
			return e.CreatedAt.Equal(fixed)
		})).Return(nil)
	publisher.On("PublishStatusUpdate", mock.Anything, mock.MatchedBy(func(msg interfaces.StatusUpdateMessage) bool {
		return msg.Timestamp.Equal(fixed)
	})).Return(nil)

	_, err := svc.ApprovePayment(context.Background(), order.Number, adminUser())
	require.NoError(t, err)

	orders.AssertExpectations(t)
	publisher.AssertExpectations(t)
}
