package catalog

import (
	"context"

	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// Service serves the read-only material catalog.
type Service struct {
	materials interfaces.MaterialRepository
}

func NewService(materials interfaces.MaterialRepository) *Service {
	return &Service{materials: materials}
}

func (s *Service) ListMaterials(ctx context.Context) ([]*domain.Material, error) {
	return s.materials.ListAll(ctx)
}
