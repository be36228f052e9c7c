package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// Store persists orders
type Store interface {
	GetChild(ctx context.Context, childID string) (*Child, error)
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListByParent(ctx context.Context, parentID string) ([]*Order, error)
	ListUndelivered(ctx context.Context) ([]*Order, error)
	SetDeliveryStatus(ctx context.Context, id string, status DeliveryStatus) error
	GetConfirmationData(ctx context.Context, orderID string) (*ConfirmationData, error)
	ListAllWithChildNames(ctx context.Context) ([]*AdminOrder, error)
	CountPerDay(ctx context.Context, start, end calendar.Date) ([]DailyCount, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `o.id, o.parent_id, o.child_id, o.order_type, o.start_date, o.end_date,
		       o.price_cents, o.billable_days, o.notes, o.allergies, o.bread_type, o.crust, o.butter,
		       o.payment_status, o.delivery_status, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner, extra ...interface{}) (*Order, error) {
	o := &Order{}
	dest := []interface{}{
		&o.ID, &o.ParentID, &o.ChildID, &o.OrderType, &o.StartDate, &o.EndDate,
		&o.PriceCents, &o.BillableDays, &o.Preferences.Notes, &o.Preferences.Allergies,
		&o.Preferences.BreadType, &o.Preferences.Crust, &o.Preferences.Butter,
		&o.PaymentStatus, &o.DeliveryStatus, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return o, nil
}

// GetChild returns a child with its school
func (s *PostgresStore) GetChild(ctx context.Context, childID string) (*Child, error) {
	c := &Child{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, school_id, first_name, last_name
		FROM children
		WHERE id = $1
	`, childID).Scan(&c.ID, &c.ParentID, &c.SchoolID, &c.FirstName, &c.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Child not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return c, nil
}

// CreateOrder inserts a new order
func (s *PostgresStore) CreateOrder(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, parent_id, child_id, order_type, start_date, end_date,
		                    price_cents, billable_days, notes, allergies, bread_type, crust, butter,
		                    payment_status, delivery_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		o.ID, o.ParentID, o.ChildID, o.OrderType, o.StartDate, o.EndDate,
		o.PriceCents, o.BillableDays, o.Preferences.Notes, o.Preferences.Allergies,
		o.Preferences.BreadType, o.Preferences.Crust, o.Preferences.Butter,
		o.PaymentStatus, o.DeliveryStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrder returns an order by id
func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ListByParent returns a parent's orders, newest start date first
func (s *PostgresStore) ListByParent(ctx context.Context, parentID string) ([]*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.parent_id = $1
		ORDER BY o.start_date DESC, o.created_at DESC
	`
	return s.list(ctx, query, parentID)
}

// ListUndelivered returns every order still moving through delivery
func (s *PostgresStore) ListUndelivered(ctx context.Context) ([]*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.delivery_status IN ('ordered', 'in-progress')
		ORDER BY o.start_date
	`
	return s.list(ctx, query)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...interface{}) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// SetDeliveryStatus writes the delivery status of an order
func (s *PostgresStore) SetDeliveryStatus(ctx context.Context, id string, status DeliveryStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET delivery_status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to set delivery status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("Order not found")
	}
	return nil
}

// GetConfirmationData loads an order with its parent email and child name
func (s *PostgresStore) GetConfirmationData(ctx context.Context, orderID string) (*ConfirmationData, error) {
	query := `
		SELECT ` + orderColumns + `, u.email, c.first_name
		FROM orders o
		JOIN users u ON u.id = o.parent_id
		JOIN children c ON c.id = o.child_id
		WHERE o.id = $1
	`
	data := &ConfirmationData{}
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, orderID), &data.ParentEmail, &data.ChildName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order confirmation data: %w", err)
	}
	data.Order = o
	return data, nil
}

// ListAllWithChildNames returns every order with its child's full name,
// newest start date first
func (s *PostgresStore) ListAllWithChildNames(ctx context.Context) ([]*AdminOrder, error) {
	query := `
		SELECT ` + orderColumns + `, c.first_name || ' ' || c.last_name
		FROM orders o
		JOIN children c ON c.id = o.child_id
		ORDER BY o.start_date DESC, o.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var list []*AdminOrder
	for rows.Next() {
		var childName string
		o, err := scanOrder(rows, &childName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, &AdminOrder{Order: *o, ChildName: childName})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return list, nil
}

// CountPerDay returns, for every day from start to end, how many orders
// cover it. Days without orders count zero.
func (s *PostgresStore) CountPerDay(ctx context.Context, start, end calendar.Date) ([]DailyCount, error) {
	query := `
		SELECT d::date, COUNT(o.id)
		FROM generate_series($1::date, $2::date, interval '1 day') AS d
		LEFT JOIN orders o ON o.start_date <= d::date AND o.end_date >= d::date
		GROUP BY d
		ORDER BY d
	`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	var counts []DailyCount
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Date, &dc.OrderCount); err != nil {
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order counts: %w", err)
	}
	return counts, nil
}
