package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusConfirmationPending Status = "confirmation_pending"
	StatusInProduction        Status = "in_production"
	StatusCutting             Status = "cutting"
	StatusPostProcessing      Status = "post_processing"
	StatusQualityCheck        Status = "quality_check"
	StatusPackaging           Status = "packaging"
	StatusShipped             Status = "shipped"
	StatusDelivered           Status = "delivered"
	StatusCancelled           Status = "cancelled"
)

// Transition is one legal edge of the order workflow.
type Transition struct {
	From  Status
	To    Status
	Actor Role
	// NeedsAssignment restricts the edge to the operator currently assigned
	// to the order.
	NeedsAssignment bool
}

// transitions is the single transition table. Every surface (storefront,
// back-office, production console) consults it through FindTransition; no
// caller decides legality on its own.
var transitions = []Transition{
	{From: StatusPending, To: StatusConfirmationPending, Actor: RoleCustomer},
	{From: StatusConfirmationPending, To: StatusInProduction, Actor: RoleAdmin},
	{From: StatusConfirmationPending, To: StatusPending, Actor: RoleAdmin},
	{From: StatusPending, To: StatusCancelled, Actor: RoleAdmin},
	{From: StatusConfirmationPending, To: StatusCancelled, Actor: RoleAdmin},
	{From: StatusInProduction, To: StatusCutting, Actor: RoleOperator, NeedsAssignment: true},
	{From: StatusCutting, To: StatusPostProcessing, Actor: RoleOperator, NeedsAssignment: true},
	{From: StatusPostProcessing, To: StatusQualityCheck, Actor: RoleOperator, NeedsAssignment: true},
	{From: StatusQualityCheck, To: StatusPackaging, Actor: RoleOperator, NeedsAssignment: true},
	{From: StatusPackaging, To: StatusShipped, Actor: RoleOperator, NeedsAssignment: true},
	{From: StatusShipped, To: StatusDelivered, Actor: RoleAdmin},
}

// FindTransition looks up the edge from -> to. The second return value is
// false when the edge is not in the table.
func FindTransition(from, to Status) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// NextProductionStatus returns the status the assigned operator advances the
// order to from its current one. False when the current status has no
// operator edge.
func NextProductionStatus(from Status) (Status, bool) {
	for _, t := range transitions {
		if t.From == from && t.Actor == RoleOperator {
			return t.To, true
		}
	}
	return "", false
}

// ProductionStatuses are the states visible in the operator job queue.
func ProductionStatuses() []Status {
	return []Status{StatusInProduction, StatusCutting, StatusPostProcessing, StatusQualityCheck, StatusPackaging}
}

func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusConfirmationPending, StatusInProduction,
		StatusCutting, StatusPostProcessing, StatusQualityCheck,
		StatusPackaging, StatusShipped, StatusDelivered, StatusCancelled,
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmationPending, StatusInProduction,
		StatusCutting, StatusPostProcessing, StatusQualityCheck,
		StatusPackaging, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

// Label is the user-facing name of a status. The switch is total over the
// enum; display code never falls back to a default style.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending Payment"
	case StatusConfirmationPending:
		return "Awaiting Confirmation"
	case StatusInProduction:
		return "In Production"
	case StatusCutting:
		return "Cutting"
	case StatusPostProcessing:
		return "Post Processing"
	case StatusQualityCheck:
		return "Quality Check"
	case StatusPackaging:
		return "Packaging"
	case StatusShipped:
		return "Shipped"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// StatusHistoryEntry is an append-only audit record. One entry is created per
// transition (plus one at order creation with no old status); entries are
// never mutated or deleted.
type StatusHistoryEntry struct {
	ID        int
	OrderID   int
	OldStatus *Status
	NewStatus Status
	ChangedBy string
	Notes     *string
	CreatedAt time.Time
}
