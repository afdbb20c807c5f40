package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// Service is the identity provider boundary: password sign-in, public
// sign-up (customers only), sign-out.
type Service struct {
	users  interfaces.UserRepository
	tokens *TokenManager
	cache  *IdentityCache
	logger logger.Logger
}

func NewService(users interfaces.UserRepository, tokens *TokenManager, cache *IdentityCache, logger logger.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cache:  cache,
		logger: logger,
	}
}

// Register creates a customer account. The public entry point never creates
// admins or operators; those rows are seeded out of band.
func (s *Service) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrValidation)
	}

	if existing, err := s.users.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := domain.NewUser(email, strings.TrimSpace(name), string(hash), domain.RoleCustomer)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("user_create_failed", "Failed to create user", "", nil, err)
		return nil, err
	}

	s.logger.Info("user_registered", fmt.Sprintf("Customer %s registered", user.Email), "", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}

// Login verifies the password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	// A fresh sign-in supersedes whatever identity the cache held.
	s.cache.Invalidate()

	s.logger.Info("user_login", fmt.Sprintf("User %s signed in", user.Email), "", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	return token, user, nil
}

// Logout invalidates the identity cache. Tokens are stateless, so the session
// ends when the client discards the token.
func (s *Service) Logout(ctx context.Context, user *domain.User) {
	s.cache.Invalidate()
	if user != nil {
		s.logger.Info("user_logout", fmt.Sprintf("User %s signed out", user.Email), "", nil)
	}
}

// Authenticate resolves a bearer token to a user profile through the
// identity cache.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return s.cache.CurrentUser(ctx, claims)
}
