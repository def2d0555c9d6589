package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ftnmarket/internal/models"
)

const tradeColumns = `id, trade_time, trade_type, unit_price, trade_amount, total_price, order_id, user_id`

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(&t.ID, &t.TradeTime, &t.Type, &t.UnitPrice,
		&t.TradeAmount, &t.TotalPrice, &t.OrderID, &t.UserID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ApplyFill records a fill atomically: the order's partial update and the
// trade insert commit together or not at all.
func (db *DB) ApplyFill(ctx context.Context, orderID uuid.UUID, set map[string]any, trade *models.Trade) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql, args := updateSQL("orders", set)
	if _, err := tx.Exec(ctx, sql, append(args, orderID)...); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO trades (`+tradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		trade.ID, trade.TradeTime, trade.Type, trade.UnitPrice,
		trade.TradeAmount, trade.TotalPrice, trade.OrderID, trade.UserID)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrade retrieves one trade by ID, or (nil, nil) when absent.
func (db *DB) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	t, err := scanTrade(db.Pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// ListOrderTrades lists the fills of one order, oldest first. trade_time
// carries second precision, so same-second fills tie-break on the
// insertion sequence.
func (db *DB) ListOrderTrades(ctx context.Context, orderID uuid.UUID) ([]models.Trade, error) {
	return db.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE order_id = $1 ORDER BY trade_time ASC, seq ASC`,
		orderID)
}

// ListUserTrades lists a user's fills, newest first.
func (db *DB) ListUserTrades(ctx context.Context, userID uuid.UUID, limit int) ([]models.Trade, error) {
	sql := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1 ORDER BY trade_time DESC, seq DESC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	return db.queryTrades(ctx, sql, userID)
}

func (db *DB) queryTrades(ctx context.Context, sql string, args ...any) ([]models.Trade, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}
