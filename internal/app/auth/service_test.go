package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
)

func newTestAuthService(repo *MockUserRepository) *Service {
	tokens := NewTokenManager("test-secret", 24)
	cache := NewIdentityCache(repo, 30*time.Second, nil)
	return NewService(repo, tokens, cache, logger.New("test"))
}

func TestRegisterCreatesCustomer(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestAuthService(repo)

	repo.On("FindByEmail", mock.Anything, "aset@fab.kz").Return(nil, errors.New("no rows"))
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "aset@fab.kz" && u.Role == domain.RoleCustomer && u.PasswordHash != "secret-password"
	})).Return(nil)

	user, err := svc.Register(context.Background(), "  Aset@Fab.kz ", "Aset", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "aset@fab.kz", user.Email)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-password")))

	repo.AssertExpectations(t)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestAuthService(repo)

	repo.On("FindByEmail", mock.Anything, "aset@fab.kz").Return(&domain.User{ID: 1}, nil)

	_, err := svc.Register(context.Background(), "aset@fab.kz", "Aset", "secret-password")
	assert.ErrorIs(t, err, domain.ErrValidation)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newTestAuthService(new(MockUserRepository))

	_, err := svc.Register(context.Background(), "aset@fab.kz", "Aset", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: 7, Email: "aset@fab.kz", Role: domain.RoleCustomer, PasswordHash: string(hash)}

	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "aset@fab.kz").Return(user, nil)
	repo.On("FindByID", mock.Anything, 7).Return(user, nil)
	svc := newTestAuthService(repo)

	token, got, err := svc.Login(context.Background(), "aset@fab.kz", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, 7, got.ID)
	require.NotEmpty(t, token)

	resolved, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 7, resolved.ID)
	assert.Equal(t, domain.RoleCustomer, resolved.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: 7, Email: "aset@fab.kz", PasswordHash: string(hash)}

	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "aset@fab.kz").Return(user, nil)
	svc := newTestAuthService(repo)

	_, _, err = svc.Login(context.Background(), "aset@fab.kz", "not-the-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginUnknownEmail(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "ghost@fab.kz").Return(nil, errors.New("no rows"))
	svc := newTestAuthService(repo)

	_, _, err := svc.Login(context.Background(), "ghost@fab.kz", "whatever")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	svc := newTestAuthService(new(MockUserRepository))

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	tokens := NewTokenManager("test-secret", 24)

	// A token carrying alg "none" must never pass, whatever its claims say.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 7,
		Email:  "a@b.kz",
		Role:   domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokens.Parse(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
