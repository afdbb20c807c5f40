package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	o.id, o.number, o.customer_id,
	o.subtotal, o.tax, o.shipping_cost, o.total_amount,
	o.ship_line1, o.ship_city, o.ship_region, o.ship_postal_code, o.ship_country, o.ship_phone,
	o.status, o.assigned_operator_id, o.assigned_at,
	o.payment_proof_key, o.payment_confirmed_by, o.payment_confirmed_at,
	o.operator_notes, o.tracking_number, o.tracking_url, o.shipped_at,
	o.production_started_at, o.production_completed_at,
	o.status_updated_by, o.status_updated_at, o.created_at, o.updated_at`

func scanOrder(row Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID,
		&o.Subtotal, &o.Tax, &o.ShippingCost, &o.TotalAmount,
		&o.ShippingAddress.Line1, &o.ShippingAddress.City, &o.ShippingAddress.Region,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country, &o.ShippingAddress.Phone,
		&o.Status, &o.AssignedOperatorID, &o.AssignedAt,
		&o.PaymentProofKey, &o.PaymentConfirmedBy, &o.PaymentConfirmedAt,
		&o.OperatorNotes, &o.TrackingNumber, &o.TrackingURL, &o.ShippedAt,
		&o.ProductionStartedAt, &o.ProductionCompletedAt,
		&o.StatusUpdatedBy, &o.StatusUpdatedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (number, customer_id, subtotal, tax, shipping_cost, total_amount,
		                    ship_line1, ship_city, ship_region, ship_postal_code, ship_country, ship_phone,
		                    status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err = tx.QueryRow(ctx, query,
		order.Number, order.CustomerID, order.Subtotal, order.Tax, order.ShippingCost, order.TotalAmount,
		order.ShippingAddress.Line1, order.ShippingAddress.City, order.ShippingAddress.Region,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country, order.ShippingAddress.Phone,
		order.Status, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			// A concurrent create claimed the same generated number.
			return fmt.Errorf("%w: order number %s", domain.ErrDuplicate, order.Number)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		itemQuery := `
			INSERT INTO order_items (order_id, material_id, thickness, quantity, unit_price, total_price,
			                         design_file_name, design_file_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		item := &order.Items[i]
		err = tx.QueryRow(ctx, itemQuery,
			order.ID, item.MaterialID, item.Thickness, item.Quantity, item.UnitPrice, item.TotalPrice,
			item.DesignFileName, item.DesignFileKey, time.Now(),
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		item.OrderID = order.ID
	}

	// Initial history row: no old status.
	logQuery := `
		INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, created_at)
		VALUES ($1, NULL, $2, $3, $4)
	`
	_, err = tx.Exec(ctx, logQuery, order.ID, order.Status, "storefront", order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.number = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, number)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, material_id, thickness, quantity, unit_price, total_price,
		       design_file_name, design_file_key
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	order.Items = nil
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MaterialID, &item.Thickness,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice,
			&item.DesignFileName, &item.DesignFileKey); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return nil
}

// List applies the back-office filters. The customer join serves both the
// free-text search and the customer_name sort.
func (r *orderRepository) List(ctx context.Context, filter interfaces.OrderFilter, sort interfaces.OrderSort, page interfaces.Page) ([]*domain.Order, int, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(o.number ILIKE $%d OR u.name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		conds = append(conds, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		conds = append(conds, fmt.Sprintf("o.created_at <= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM orders o JOIN users u ON u.id = o.customer_id` + where
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	orderBy := sortClause(sort)

	listArgs := args
	limitClause := ""
	if page.Limit > 0 {
		listArgs = append(listArgs, page.Limit, page.Offset)
		limitClause = fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(listArgs)-1, len(listArgs))
	}

	query := `SELECT ` + orderColumns + ` FROM orders o JOIN users u ON u.id = o.customer_id` +
		where + orderBy + limitClause

	rows, err := r.db.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, total, nil
}

// sortClause whitelists sortable columns; anything else falls back to newest
// first.
func sortClause(sort interfaces.OrderSort) string {
	col := "o.created_at"
	switch sort.Field {
	case interfaces.SortByCreatedAt:
		col = "o.created_at"
	case interfaces.SortByOrderNumber:
		col = "o.number"
	case interfaces.SortByStatus:
		col = "o.status"
	case interfaces.SortByTotalAmount:
		col = "o.total_amount"
	case interfaces.SortByCustomerName:
		col = "u.name"
	default:
		return " ORDER BY o.created_at DESC"
	}
	dir := "ASC"
	if sort.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.customer_id = $1 ORDER BY o.created_at DESC`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *orderRepository) ListAssigned(ctx context.Context, operatorID int, statuses []domain.Status) ([]*domain.Order, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.assigned_operator_id = $1 AND o.status = ANY($2)
		ORDER BY o.assigned_at ASC`
	rows, err := r.db.Query(ctx, query, operatorID, values)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *orderRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	prefix := fmt.Sprintf("LC_%s_", now.Format("20060102"))

	query := `SELECT COUNT(*) FROM orders WHERE number LIKE $1`
	var count int
	if err := r.db.QueryRow(ctx, query, prefix+"%").Scan(&count); err != nil {
		return "", fmt.Errorf("failed to count orders: %w", err)
	}

	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// UpdateStatusWithLog persists one transition atomically. The status guard in
// the WHERE clause is the per-order serialization point: if the row moved
// since it was read, zero rows match and the write is rejected without
// touching history.
func (r *orderRepository) UpdateStatusWithLog(ctx context.Context, order *domain.Order, oldStatus domain.Status, entry domain.StatusHistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $1,
		    payment_proof_key = $2,
		    payment_confirmed_by = $3,
		    payment_confirmed_at = $4,
		    operator_notes = $5,
		    tracking_number = $6,
		    tracking_url = $7,
		    shipped_at = $8,
		    production_started_at = $9,
		    production_completed_at = $10,
		    status_updated_by = $11,
		    status_updated_at = $12,
		    updated_at = $13
		WHERE id = $14 AND status = $15
	`
	tag, err := tx.Exec(ctx, query,
		order.Status,
		order.PaymentProofKey, order.PaymentConfirmedBy, order.PaymentConfirmedAt,
		order.OperatorNotes,
		order.TrackingNumber, order.TrackingURL, order.ShippedAt,
		order.ProductionStartedAt, order.ProductionCompletedAt,
		order.StatusUpdatedBy, order.StatusUpdatedAt, order.UpdatedAt,
		order.ID, oldStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", domain.ErrStatusConflict, order.Number)
	}

	logQuery := `
		INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, logQuery,
		entry.OrderID, entry.OldStatus, entry.NewStatus, entry.ChangedBy, entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) UpdateAssignment(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET assigned_operator_id = $1, assigned_at = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query,
		order.AssignedOperatorID, order.AssignedAt, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, order.Number)
	}
	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, old_status, new_status, changed_by, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.OldStatus, &e.NewStatus, &e.ChangedBy, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
