package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
)

const orderColumns = `id, status, order_type, publish_time, finish_time, delete_time,
	effective_hours, expire_time, unit_price, total_price,
	total_amount, traded_amount, remaining_amount, user_id, user_name`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Status, &o.Type, &o.PublishTime, &o.FinishTime, &o.DeleteTime,
		&o.EffectiveHours, &o.ExpireTime, &o.UnitPrice, &o.TotalPrice,
		&o.TotalAmount, &o.TradedAmount, &o.RemainingAmount, &o.UserID, &o.UserName)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrder inserts a new order row.
func (db *DB) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.Status, o.Type, o.PublishTime, o.FinishTime, o.DeleteTime,
		o.EffectiveHours, o.ExpireTime, o.UnitPrice, o.TotalPrice,
		o.TotalAmount, o.TradedAmount, o.RemainingAmount, o.UserID, o.UserName)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrder retrieves one order by ID, or (nil, nil) when absent.
func (db *DB) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(db.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// FindTradingOrder retrieves the owner's TRADING order of one side, or
// (nil, nil) when none exists.
func (db *DB) FindTradingOrder(ctx context.Context, userID uuid.UUID, typ models.OrderType) (*models.Order, error) {
	o, err := scanOrder(db.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND order_type = $2 AND status = $3
		 LIMIT 1`,
		userID, typ, models.StatusTrading))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find trading order: %w", err)
	}
	return o, nil
}

// UpdateOrder rewrites exactly the given fields of one order row.
func (db *DB) UpdateOrder(ctx context.Context, id uuid.UUID, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	sql, args := updateSQL("orders", set)
	if _, err := db.Pool.Exec(ctx, sql, append(args, id)...); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// DeleteOrder removes an order row.
func (db *DB) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// ListActiveOrders lists TRADING orders with the best counterparty price
// first: BUY by unit price descending, SELL ascending.
func (db *DB) ListActiveOrders(ctx context.Context, typ string, limit int) ([]models.Order, error) {
	var sql string
	args := []any{models.StatusTrading}
	switch typ {
	case market.FilterAll:
		sql = `SELECT ` + orderColumns + ` FROM orders
		       WHERE status = $1 ORDER BY publish_time DESC`
	case string(models.OrderBuy):
		sql = `SELECT ` + orderColumns + ` FROM orders
		       WHERE status = $1 AND order_type = $2 ORDER BY unit_price DESC, publish_time ASC`
		args = append(args, typ)
	case string(models.OrderSell):
		sql = `SELECT ` + orderColumns + ` FROM orders
		       WHERE status = $1 AND order_type = $2 ORDER BY unit_price ASC, publish_time ASC`
		args = append(args, typ)
	default:
		return nil, fmt.Errorf("unknown order type filter %q", typ)
	}
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	return db.queryOrders(ctx, sql, args...)
}

// ListUserOrders lists a user's orders, newest first.
func (db *DB) ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders
	        WHERE user_id = $1 ORDER BY publish_time DESC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	return db.queryOrders(ctx, sql, userID)
}

// ListTradingOrders lists every TRADING order, for the expiry sweep.
func (db *DB) ListTradingOrders(ctx context.Context) ([]models.Order, error) {
	return db.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY expire_time ASC`,
		models.StatusTrading)
}

func (db *DB) queryOrders(ctx context.Context, sql string, args ...any) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
