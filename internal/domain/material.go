package domain

import (
	"fmt"
	"time"
)

// Material is a catalog entry referenced, never owned, by order items.
type Material struct {
	ID              int
	Name            string
	Type            string
	CostPerSquareCm float64
	Thicknesses     []float64
	Colors          []string
	CreatedAt       time.Time
}

// SupportsThickness reports whether the material is stocked in the given
// thickness.
func (m *Material) SupportsThickness(t float64) bool {
	for _, v := range m.Thicknesses {
		if v == t {
			return true
		}
	}
	return false
}

// UnitPrice derives the price of one cut piece from the catalog cost and the
// design's area. Pricing always happens here so client-submitted prices are
// never trusted.
func (m *Material) UnitPrice(areaCm2 float64) (float64, error) {
	if areaCm2 <= 0 {
		return 0, fmt.Errorf("%w: design area must be positive", ErrValidation)
	}
	return round2(m.CostPerSquareCm * areaCm2), nil
}
