package http

import (
	"time"

	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

type AddressView struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type OrderItemView struct {
	ID             int     `json:"id"`
	MaterialID     int     `json:"material_id"`
	Thickness      float64 `json:"thickness"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	TotalPrice     float64 `json:"total_price"`
	DesignFileName string  `json:"design_file_name"`
	DesignFileURL  string  `json:"design_file_url,omitempty"`
}

type OrderView struct {
	Number      string  `json:"order_number"`
	Status      string  `json:"status"`
	StatusLabel string  `json:"status_label"`

	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	ShippingCost float64 `json:"shipping_cost"`
	TotalAmount  float64 `json:"total_amount"`

	ShippingAddress AddressView     `json:"shipping_address"`
	Items           []OrderItemView `json:"items,omitempty"`

	AssignedOperatorID *int       `json:"assigned_operator_id,omitempty"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`

	TrackingNumber *string    `json:"tracking_number,omitempty"`
	TrackingURL    *string    `json:"tracking_url,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`

	OperatorNotes *string `json:"operator_notes,omitempty"`

	ProductionStartedAt   *time.Time `json:"production_started_at,omitempty"`
	ProductionCompletedAt *time.Time `json:"production_completed_at,omitempty"`
	PaymentConfirmedAt    *time.Time `json:"payment_confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type HistoryEntryView struct {
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Label     string    `json:"label"`
	ChangedBy string    `json:"changed_by"`
	Notes     *string   `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderDetailView struct {
	OrderView
	History         []HistoryEntryView `json:"history"`
	PaymentProofURL *string            `json:"payment_proof_url,omitempty"`
	Operators       []UserView         `json:"assignable_operators,omitempty"`
}

type UserView struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type MaterialView struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	CostPerSquareCm float64   `json:"cost_per_square_cm"`
	Thicknesses     []float64 `json:"thicknesses"`
	Colors          []string  `json:"colors"`
}

func orderToView(o *domain.Order, fileURLs map[int]string) OrderView {
	v := OrderView{
		Number:      o.Number,
		Status:      string(o.Status),
		StatusLabel: o.Status.Label(),

		Subtotal:     o.Subtotal,
		Tax:          o.Tax,
		ShippingCost: o.ShippingCost,
		TotalAmount:  o.TotalAmount,

		ShippingAddress: AddressView{
			Line1:      o.ShippingAddress.Line1,
			City:       o.ShippingAddress.City,
			Region:     o.ShippingAddress.Region,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
			Phone:      o.ShippingAddress.Phone,
		},

		AssignedOperatorID: o.AssignedOperatorID,
		AssignedAt:         o.AssignedAt,
		TrackingNumber:     o.TrackingNumber,
		TrackingURL:        o.TrackingURL,
		ShippedAt:          o.ShippedAt,
		OperatorNotes:      o.OperatorNotes,

		ProductionStartedAt:   o.ProductionStartedAt,
		ProductionCompletedAt: o.ProductionCompletedAt,
		PaymentConfirmedAt:    o.PaymentConfirmedAt,

		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}

	for _, item := range o.Items {
		iv := OrderItemView{
			ID:             item.ID,
			MaterialID:     item.MaterialID,
			Thickness:      item.Thickness,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TotalPrice:     item.TotalPrice,
			DesignFileName: item.DesignFileName,
		}
		if fileURLs != nil {
			iv.DesignFileURL = fileURLs[item.ID]
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func detailToView(d *interfaces.OrderDetail) OrderDetailView {
	view := OrderDetailView{
		OrderView:       orderToView(d.Order, d.DesignFileURLs),
		PaymentProofURL: d.PaymentProofURL,
		History:         historyToView(d.History),
	}
	for _, op := range d.Operators {
		view.Operators = append(view.Operators, userToView(op))
	}
	return view
}

func historyToView(entries []*domain.StatusHistoryEntry) []HistoryEntryView {
	views := make([]HistoryEntryView, 0, len(entries))
	for _, e := range entries {
		hv := HistoryEntryView{
			NewStatus: string(e.NewStatus),
			Label:     e.NewStatus.Label(),
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			Timestamp: e.CreatedAt,
		}
		if e.OldStatus != nil {
			old := string(*e.OldStatus)
			hv.OldStatus = &old
		}
		views = append(views, hv)
	}
	return views
}

func addressFromView(v AddressView) domain.Address {
	return domain.Address{
		Line1:      v.Line1,
		City:       v.City,
		Region:     v.Region,
		PostalCode: v.PostalCode,
		Country:    v.Country,
		Phone:      v.Phone,
	}
}

func userToView(u *domain.User) UserView {
	return UserView{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

func materialToView(m *domain.Material) MaterialView {
	return MaterialView{
		ID:              m.ID,
		Name:            m.Name,
		Type:            m.Type,
		CostPerSquareCm: m.CostPerSquareCm,
		Thicknesses:     m.Thicknesses,
		Colors:          m.Colors,
	}
}
