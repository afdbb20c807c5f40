package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fabworks/lasercut/internal/domain"
)

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

func claimsFor(u *domain.User) *Claims {
	return &Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func TestIdentityCacheFreshHitSkipsLookup(t *testing.T) {
	user := &domain.User{ID: 7, Email: "a@b.kz", Role: domain.RoleCustomer, Name: "Aset"}
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(user, nil).Once()

	base := time.Now()
	current := base
	cache := NewIdentityCache(repo, 30*time.Second, func() time.Time { return current })

	got, err := cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)
	assert.Equal(t, "Aset", got.Name)

	// Second call inside the freshness window must not hit the repository.
	current = base.Add(29 * time.Second)
	got, err = cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)
	assert.Equal(t, "Aset", got.Name)

	repo.AssertExpectations(t)
}

func TestIdentityCacheExpiryRefetches(t *testing.T) {
	user := &domain.User{ID: 7, Email: "a@b.kz", Role: domain.RoleCustomer}
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(user, nil).Twice()

	base := time.Now()
	current := base
	cache := NewIdentityCache(repo, 30*time.Second, func() time.Time { return current })

	_, err := cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	current = base.Add(31 * time.Second)
	_, err = cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestIdentityCacheSingleFlight(t *testing.T) {
	user := &domain.User{ID: 7, Email: "a@b.kz", Role: domain.RoleCustomer}

	var calls int32
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Run(func(mock.Arguments) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
	}).Return(user, nil)

	cache := NewIdentityCache(repo, 30*time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.CurrentUser(context.Background(), claimsFor(user))
			assert.NoError(t, err)
			assert.Equal(t, 7, got.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses must share one lookup")
}

func TestIdentityCacheIdentityChangeInvalidates(t *testing.T) {
	alice := &domain.User{ID: 7, Email: "alice@b.kz", Role: domain.RoleCustomer}
	bob := &domain.User{ID: 9, Email: "bob@b.kz", Role: domain.RoleAdmin}

	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(alice, nil).Once()
	repo.On("FindByID", mock.Anything, 9).Return(bob, nil).Once()

	cache := NewIdentityCache(repo, 30*time.Second, nil)

	got, err := cache.CurrentUser(context.Background(), claimsFor(alice))
	require.NoError(t, err)
	assert.Equal(t, 7, got.ID)

	// A different user id behind the same cache drops the stale profile at
	// once, well inside the freshness window.
	got, err = cache.CurrentUser(context.Background(), claimsFor(bob))
	require.NoError(t, err)
	assert.Equal(t, 9, got.ID)

	repo.AssertExpectations(t)
}

func TestIdentityCacheSameIdentityTokenRefreshKeepsCache(t *testing.T) {
	user := &domain.User{ID: 7, Email: "a@b.kz", Role: domain.RoleCustomer}
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(user, nil).Once()

	cache := NewIdentityCache(repo, 30*time.Second, nil)

	_, err := cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	// Fresh claims object for the same user id, as a token refresh produces.
	_, err = cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestIdentityCacheFallsBackToClaims(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(nil, errors.New("connection refused"))

	cache := NewIdentityCache(repo, 30*time.Second, nil)

	got, err := cache.CurrentUser(context.Background(), &Claims{UserID: 7, Email: "a@b.kz", Role: domain.RoleCustomer})
	require.NoError(t, err, "lookup failure must not fail the caller")
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "a@b.kz", got.Email)
	assert.Equal(t, domain.RoleCustomer, got.Role)
}

func TestIdentityCacheInvalidate(t *testing.T) {
	user := &domain.User{ID: 7, Email: "a@b.kz", Role: domain.RoleCustomer}
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, 7).Return(user, nil).Twice()

	cache := NewIdentityCache(repo, 30*time.Second, nil)

	_, err := cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.CurrentUser(context.Background(), claimsFor(user))
	require.NoError(t, err)

	repo.AssertExpectations(t)
}
