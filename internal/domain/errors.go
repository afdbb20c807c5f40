package domain

import "errors"

var (
	// ErrIllegalTransition: the requested status change is not an edge of the
	// transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrStatusConflict: the order's status changed between read and write.
	// The row-level status guard in the repository reports it.
	ErrStatusConflict = errors.New("order status changed concurrently")

	// ErrDuplicate: a concurrent writer claimed a unique value first. Callers
	// that generate the value (order numbers) retry with a fresh one.
	ErrDuplicate = errors.New("duplicate value")

	// ErrUnauthorized: the actor's role or assignment does not permit the
	// operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound: the referenced order, user, material or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation: required input is missing or inconsistent. Raised before
	// any write is attempted.
	ErrValidation = errors.New("validation failed")
)
