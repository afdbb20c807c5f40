package domain

import (
	"fmt"
	"math"
	"time"
)

// Address is the structured shipping address of an order.
type Address struct {
	Line1      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

func (a Address) Validate() error {
	if a.Line1 == "" || a.City == "" || a.Country == "" {
		return fmt.Errorf("%w: shipping address requires line1, city and country", ErrValidation)
	}
	return nil
}

// Tracking carries optional shipment metadata recorded on the shipped edge.
type Tracking struct {
	Number string
	URL    string
}

// Order represents a fabrication request tracked through the production
// lifecycle. Monetary fields are derived server-side and always satisfy
// TotalAmount == Subtotal + Tax + ShippingCost.
type Order struct {
	ID         int
	Number     string
	CustomerID int

	Items           []OrderItem
	ShippingAddress Address

	Subtotal     float64
	Tax          float64
	ShippingCost float64
	TotalAmount  float64

	Status             Status
	AssignedOperatorID *int
	AssignedAt         *time.Time

	PaymentProofKey    *string
	PaymentConfirmedBy *int
	PaymentConfirmedAt *time.Time

	OperatorNotes *string

	TrackingNumber *string
	TrackingURL    *string
	ShippedAt      *time.Time

	ProductionStartedAt   *time.Time
	ProductionCompletedAt *time.Time

	StatusUpdatedBy *int
	StatusUpdatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem belongs to exactly one order and references a catalog material.
type OrderItem struct {
	ID         int
	OrderID    int
	MaterialID int
	Thickness  float64
	Quantity   int
	UnitPrice  float64
	TotalPrice float64

	DesignFileName string
	DesignFileKey  string
}

// moneyEps absorbs float rounding when checking the arithmetic identities.
const moneyEps = 0.005

// NewOrder builds a pending order from already-priced items. Item total
// prices and the order total are recomputed here, never taken from input.
func NewOrder(customerID int, items []OrderItem, addr Address, taxRate, shippingCost float64) (*Order, error) {
	order := &Order{
		CustomerID:      customerID,
		Items:           items,
		ShippingAddress: addr,
		ShippingCost:    shippingCost,
		Status:          StatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := order.calculateTotals(taxRate); err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

func (o *Order) calculateTotals(taxRate float64) error {
	if taxRate < 0 || o.ShippingCost < 0 {
		return fmt.Errorf("%w: tax rate and shipping cost must be non-negative", ErrValidation)
	}

	subtotal := 0.0
	for i := range o.Items {
		item := &o.Items[i]
		item.TotalPrice = round2(item.UnitPrice * float64(item.Quantity))
		subtotal += item.TotalPrice
	}

	o.Subtotal = round2(subtotal)
	o.Tax = round2(o.Subtotal * taxRate)
	o.TotalAmount = round2(o.Subtotal + o.Tax + o.ShippingCost)
	return nil
}

// Validate applies the data-model invariants. It is called on creation and
// again by the repository before any write of monetary fields.
func (o *Order) Validate() error {
	if o.CustomerID <= 0 {
		return fmt.Errorf("%w: order requires a customer", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least 1 item", ErrValidation)
	}
	if err := o.ShippingAddress.Validate(); err != nil {
		return err
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, o.Status)
	}
	if o.Subtotal < 0 || o.Tax < 0 || o.ShippingCost < 0 || o.TotalAmount < 0 {
		return fmt.Errorf("%w: monetary fields must be non-negative", ErrValidation)
	}
	if math.Abs(o.TotalAmount-(o.Subtotal+o.Tax+o.ShippingCost)) > moneyEps {
		return fmt.Errorf("%w: total_amount does not equal subtotal + tax + shipping_cost", ErrValidation)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.MaterialID <= 0 {
			return fmt.Errorf("%w: item %d requires a material", ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", ErrValidation, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d unit price must be non-negative", ErrValidation, i)
		}
		if math.Abs(item.TotalPrice-item.UnitPrice*float64(item.Quantity)) > moneyEps {
			return fmt.Errorf("%w: item %d total_price does not equal unit_price * quantity", ErrValidation, i)
		}
		if item.DesignFileName == "" || item.DesignFileKey == "" {
			return fmt.Errorf("%w: item %d requires a design file", ErrValidation, i)
		}
	}
	return nil
}

// checkTransition applies every guard of a status change without mutating
// the order: the edge must be in the transition table, the actor's role must
// match, and assignment-restricted edges require the assigned operator.
func (o *Order) checkTransition(to Status, actor *User) error {
	t, ok := FindTransition(o.Status, to)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	if actor == nil || actor.Role != t.Actor {
		return fmt.Errorf("%w: %s -> %s requires role %s", ErrUnauthorized, o.Status, to, t.Actor)
	}
	if t.NeedsAssignment {
		if o.AssignedOperatorID == nil || *o.AssignedOperatorID != actor.ID {
			return fmt.Errorf("%w: order %s is not assigned to operator %d", ErrUnauthorized, o.Number, actor.ID)
		}
	}
	return nil
}

// transitionTo is the single write path of every status change: the guards,
// then the audit stamps. Side effects of specific edges are applied by the
// named methods below before calling here.
func (o *Order) transitionTo(to Status, actor *User, now time.Time) error {
	if err := o.checkTransition(to, actor); err != nil {
		return err
	}

	o.Status = to
	o.StatusUpdatedBy = &actor.ID
	o.StatusUpdatedAt = &now
	o.UpdatedAt = now
	return nil
}

// CanSubmitPaymentProof runs the ownership and transition guards of a proof
// submission without applying it, so callers can reject before spending any
// side effect (storing the upload).
func (o *Order) CanSubmitPaymentProof(actor *User) error {
	if actor != nil && actor.Role == RoleCustomer && actor.ID != o.CustomerID {
		return fmt.Errorf("%w: order %s belongs to another customer", ErrUnauthorized, o.Number)
	}
	return o.checkTransition(StatusConfirmationPending, actor)
}

// SubmitPaymentProof records the uploaded proof and moves the order to
// confirmation. The only customer-triggered edge.
func (o *Order) SubmitPaymentProof(actor *User, fileKey string, now time.Time) error {
	if fileKey == "" {
		return fmt.Errorf("%w: payment proof file is required", ErrValidation)
	}
	if err := o.CanSubmitPaymentProof(actor); err != nil {
		return err
	}
	if err := o.transitionTo(StatusConfirmationPending, actor, now); err != nil {
		return err
	}
	o.PaymentProofKey = &fileKey
	return nil
}

// ApprovePayment confirms the payment proof and releases the order to
// production.
func (o *Order) ApprovePayment(actor *User, now time.Time) error {
	if err := o.transitionTo(StatusInProduction, actor, now); err != nil {
		return err
	}
	o.PaymentConfirmedBy = &actor.ID
	o.PaymentConfirmedAt = &now
	return nil
}

// RejectPayment sends the order back to pending, discarding the proof
// reference and recording the reason in the notes.
func (o *Order) RejectPayment(actor *User, reason string, now time.Time) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	if err := o.transitionTo(StatusPending, actor, now); err != nil {
		return err
	}
	o.PaymentProofKey = nil
	o.appendNote("Payment rejected: " + reason)
	return nil
}

// Cancel moves the order to the terminal cancelled state. Only reachable
// before production starts.
func (o *Order) Cancel(actor *User, reason string, now time.Time) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}
	if err := o.transitionTo(StatusCancelled, actor, now); err != nil {
		return err
	}
	o.appendNote("Cancelled: " + reason)
	return nil
}

// AdvanceProduction moves the order along the operator chain by one edge and
// returns the status it landed on. Tracking info is only consulted on the
// shipping edge.
func (o *Order) AdvanceProduction(actor *User, tracking *Tracking, now time.Time) (Status, error) {
	next, ok := NextProductionStatus(o.Status)
	if !ok {
		return "", fmt.Errorf("%w: no production step from %s", ErrIllegalTransition, o.Status)
	}
	if err := o.transitionTo(next, actor, now); err != nil {
		return "", err
	}

	switch next {
	case StatusCutting:
		o.ProductionStartedAt = &now
	case StatusPackaging:
		o.ProductionCompletedAt = &now
	case StatusShipped:
		o.ShippedAt = &now
		if tracking != nil {
			if tracking.Number != "" {
				o.TrackingNumber = &tracking.Number
			}
			if tracking.URL != "" {
				o.TrackingURL = &tracking.URL
			}
		}
	}
	return next, nil
}

// MarkDelivered finalizes the order.
func (o *Order) MarkDelivered(actor *User, now time.Time) error {
	return o.transitionTo(StatusDelivered, actor, now)
}

// AssignOperator is a field update, not a transition: permitted to admins,
// only while the order sits in in_production. Passing an assignment while one
// exists is an explicit reassignment.
func (o *Order) AssignOperator(actor *User, operator *User, now time.Time) error {
	if actor == nil || actor.Role != RoleAdmin {
		return fmt.Errorf("%w: only admins may assign operators", ErrUnauthorized)
	}
	if operator == nil || operator.Role != RoleOperator {
		return fmt.Errorf("%w: assignee must be an operator", ErrValidation)
	}
	if o.Status != StatusInProduction {
		return fmt.Errorf("%w: assignment only allowed while in_production, order is %s", ErrValidation, o.Status)
	}

	o.AssignedOperatorID = &operator.ID
	o.AssignedAt = &now
	o.UpdatedAt = now
	return nil
}

func (o *Order) appendNote(note string) {
	if o.OperatorNotes == nil || *o.OperatorNotes == "" {
		o.OperatorNotes = &note
		return
	}
	joined := *o.OperatorNotes + "\n" + note
	o.OperatorNotes = &joined
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
