package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ordergate/internal/orders"
)

// PostgresOrderStore persists orders and their lines in Postgres.
type PostgresOrderStore struct {
	db *sql.DB
}

// NewPostgresOrderStore constructs an order store backed by Postgres.
func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// NewPostgresOrderStoreWithSchema initializes the schema then returns the store.
func NewPostgresOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresOrderStore, error) {
	store := NewPostgresOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the order tables if they do not exist.
func (s *PostgresOrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			owner_ref TEXT NOT NULL,
			total_amount NUMERIC(10,2) NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_owner ON orders (owner_ref, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			item_ref TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_at_validation NUMERIC(10,2) NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// CreateOrder inserts the order and all of its lines in one transaction.
// Either everything becomes visible or nothing does.
func (s *PostgresOrderStore) CreateOrder(ctx context.Context, order orders.Order) (orders.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return orders.Order{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, owner_ref, total_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		order.ID, order.OwnerRef, order.Total.StringFixed(2), string(order.Status),
	)
	if err := row.Scan(&order.CreatedAt); err != nil {
		return orders.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, item_ref, quantity, price_at_validation)
			VALUES ($1, $2, $3, $4)`,
			order.ID, line.ItemRef, line.Quantity, line.UnitPrice.StringFixed(2),
		)
		if err != nil {
			return orders.Order{}, fmt.Errorf("insert order line %s: %w", line.ItemRef, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return orders.Order{}, fmt.Errorf("commit: %w", err)
	}

	return order, nil
}

// GetOrder loads an order with its lines.
func (s *PostgresOrderStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_ref, total_amount, status, created_at
		FROM orders
		WHERE id = $1`,
		id,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders.Order{}, orders.ErrOrderNotFound
		}
		return orders.Order{}, err
	}

	order.Lines, err = s.loadLines(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	return order, nil
}

// ListOrders loads the owner's orders, newest first.
func (s *PostgresOrderStore) ListOrders(ctx context.Context, ownerRef string) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_ref, total_amount, status, created_at
		FROM orders
		WHERE owner_ref = $1
		ORDER BY created_at DESC`,
		ownerRef,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Lines, err = s.loadLines(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UpdateStatus advances the order status. Statuses past pending are written
// by fulfillment processes, not by the orchestrator.
func (s *PostgresOrderStore) UpdateStatus(ctx context.Context, id string, status orders.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) loadLines(ctx context.Context, orderID string) ([]orders.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_ref, quantity, price_at_validation
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []orders.OrderLine
	for rows.Next() {
		var line orders.OrderLine
		if err := rows.Scan(&line.ItemRef, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (orders.Order, error) {
	var order orders.Order
	var status string
	if err := row.Scan(&order.ID, &order.OwnerRef, &order.Total, &status, &order.CreatedAt); err != nil {
		return orders.Order{}, err
	}
	order.Status = orders.Status(status)
	return order, nil
}
