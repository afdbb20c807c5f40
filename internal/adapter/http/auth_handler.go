package http

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
)

// AuthService is the identity-provider surface the handler needs.
type AuthService interface {
	Register(ctx context.Context, email, name, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Logout(ctx context.Context, user *domain.User)
}

type AuthHandler struct {
	service AuthService
	logger  logger.Logger
}

func NewAuthHandler(service AuthService, logger logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	var validationErrors []ValidationError
	if !emailRegex.MatchString(strings.TrimSpace(req.Email)) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "email",
			Message: "a valid email address is required",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "name",
			Message: "name is required",
		})
	}
	if len(req.Password) < 8 {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "password",
			Message: "password must be at least 8 characters",
		})
	}
	if len(validationErrors) > 0 {
		respondError(w, "Validation failed", http.StatusBadRequest, validationErrors)
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, userToView(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Credential failures are always 401, never 403: the caller is not
		// authenticated yet.
		respondError(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  userToView(user),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), UserFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		respondError(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	respondJSON(w, http.StatusOK, userToView(user))
}
