package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleAdmin, RoleOperator:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// User represents an authenticated actor. Role is authoritative for which
// workflow transitions the user may trigger.
type User struct {
	ID            int
	Email         string
	Name          string
	Role          Role
	PasswordHash  string
	JobsCompleted int
	CreatedAt     time.Time
}

func NewUser(email, name, passwordHash string, role Role) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	return &User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}, nil
}
