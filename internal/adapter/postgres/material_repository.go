package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

type materialRepository struct {
	db DB
}

func NewMaterialRepository(db DB) interfaces.MaterialRepository {
	return &materialRepository{db: db}
}

func (r *materialRepository) ListAll(ctx context.Context) ([]*domain.Material, error) {
	query := `
		SELECT id, name, type, cost_per_square_cm, thicknesses, colors, created_at
		FROM materials
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	var materials []*domain.Material
	for rows.Next() {
		var m domain.Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.CostPerSquareCm, &m.Thicknesses, &m.Colors, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, &m)
	}
	return materials, nil
}

func (r *materialRepository) FindByID(ctx context.Context, id int) (*domain.Material, error) {
	query := `
		SELECT id, name, type, cost_per_square_cm, thicknesses, colors, created_at
		FROM materials
		WHERE id = $1
	`
	var m domain.Material
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Type, &m.CostPerSquareCm, &m.Thicknesses, &m.Colors, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: material %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load material: %w", err)
	}
	return &m, nil
}
