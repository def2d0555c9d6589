package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
)

// Read-side projections. Each is one aggregate query over live rows; no
// caching, no consistency beyond the database state at query time.

// CountOrders counts orders of one status, optionally narrowed to one side.
func (db *DB) CountOrders(ctx context.Context, status models.OrderStatus, typ string) (int64, error) {
	sql := `SELECT COUNT(*) FROM orders WHERE status = $1`
	args := []any{status}
	if typ != market.FilterAll {
		sql += ` AND order_type = $2`
		args = append(args, typ)
	}
	var n int64
	if err := db.Pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// AverageActivePrice is the mean unit price of TRADING orders of one side.
func (db *DB) AverageActivePrice(ctx context.Context, typ models.OrderType) (decimal.Decimal, error) {
	var avg decimal.Decimal
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(unit_price), 0) FROM orders WHERE status = $1 AND order_type = $2`,
		models.StatusTrading, typ).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to average active price: %w", err)
	}
	return avg, nil
}

// TotalTradedAmount sums the traded amount over every order ever published.
func (db *DB) TotalTradedAmount(ctx context.Context) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(traded_amount), 0) FROM orders`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum traded amount: %w", err)
	}
	return n, nil
}

// TotalTradedPrice sums the value of every recorded fill.
func (db *DB) TotalTradedPrice(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_price), 0) FROM trades`).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum traded price: %w", err)
	}
	return sum, nil
}

// CountFinishedSince counts orders finished in the window.
func (db *DB) CountFinishedSince(ctx context.Context, typ string, since time.Time) (int64, error) {
	return db.countStatusSince(ctx, models.StatusFinished, "finish_time", typ, since)
}

// CountDeletedSince counts orders deleted in the window.
func (db *DB) CountDeletedSince(ctx context.Context, typ string, since time.Time) (int64, error) {
	return db.countStatusSince(ctx, models.StatusDeleted, "delete_time", typ, since)
}

func (db *DB) countStatusSince(ctx context.Context, status models.OrderStatus, timeCol, typ string, since time.Time) (int64, error) {
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM orders WHERE status = $1 AND %s >= $2`, timeCol)
	args := []any{status, since}
	if typ != market.FilterAll {
		sql += ` AND order_type = $3`
		args = append(args, typ)
	}
	var n int64
	if err := db.Pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// CountTradesSince counts fills of one side in the window.
func (db *DB) CountTradesSince(ctx context.Context, typ models.OrderType, since time.Time) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE trade_type = $1 AND trade_time >= $2`,
		typ, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// SumTradeAmountSince sums the amount of one side's fills in the window.
func (db *DB) SumTradeAmountSince(ctx context.Context, typ models.OrderType, since time.Time) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(trade_amount), 0) FROM trades WHERE trade_type = $1 AND trade_time >= $2`,
		typ, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum trade amount: %w", err)
	}
	return n, nil
}

// SumTradePriceSince sums the value of one side's fills in the window.
func (db *DB) SumTradePriceSince(ctx context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_price), 0) FROM trades WHERE trade_type = $1 AND trade_time >= $2`,
		typ, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum trade price: %w", err)
	}
	return sum, nil
}

// AvgTradePriceSince is the mean unit price of one side's fills in the window.
func (db *DB) AvgTradePriceSince(ctx context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error) {
	var avg decimal.Decimal
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(unit_price), 0) FROM trades WHERE trade_type = $1 AND trade_time >= $2`,
		typ, since).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to average trade price: %w", err)
	}
	return avg, nil
}

// TradeSeries buckets one side's fills by hour or day since the given time.
func (db *DB) TradeSeries(ctx context.Context, typ models.OrderType, bucket string, since time.Time) ([]models.TradeBucket, error) {
	if bucket != "hour" && bucket != "day" {
		return nil, fmt.Errorf("unknown series bucket %q", bucket)
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, trade_time) AS bucket,
		        COALESCE(SUM(trade_amount), 0),
		        COALESCE(AVG(unit_price), 0)
		 FROM trades
		 WHERE trade_type = $2 AND trade_time >= $3
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		bucket, typ, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade series: %w", err)
	}
	defer rows.Close()

	var series []models.TradeBucket
	for rows.Next() {
		var b models.TradeBucket
		if err := rows.Scan(&b.Bucket, &b.Amount, &b.AvgPrice); err != nil {
			return nil, fmt.Errorf("failed to scan trade series: %w", err)
		}
		series = append(series, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return series, nil
}
