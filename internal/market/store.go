package market

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ftnmarket/internal/models"
)

// FilterAll selects both order sides in listing and counting queries.
const FilterAll = "all"

// Store is the storage contract the market aggregates run against. Lookups
// return (nil, nil) when no row matches; partial updates receive a
// column-name keyed map holding only the fields to rewrite.
type Store interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindTradingOrder(ctx context.Context, userID uuid.UUID, typ models.OrderType) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, set map[string]any) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	// ApplyFill persists one fill atomically: the order's partial update and
	// the new trade row succeed or fail together.
	ApplyFill(ctx context.Context, orderID uuid.UUID, set map[string]any, trade *models.Trade) error

	ListActiveOrders(ctx context.Context, typ string, limit int) ([]models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	ListTradingOrders(ctx context.Context) ([]models.Order, error)

	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	ListOrderTrades(ctx context.Context, orderID uuid.UUID) ([]models.Trade, error)
	ListUserTrades(ctx context.Context, userID uuid.UUID, limit int) ([]models.Trade, error)

	// Read-side projections. These bypass the aggregates by design and carry
	// no consistency guarantee beyond the database state at query time.
	CountOrders(ctx context.Context, status models.OrderStatus, typ string) (int64, error)
	AverageActivePrice(ctx context.Context, typ models.OrderType) (decimal.Decimal, error)
	TotalTradedAmount(ctx context.Context) (int64, error)
	TotalTradedPrice(ctx context.Context) (decimal.Decimal, error)
	CountFinishedSince(ctx context.Context, typ string, since time.Time) (int64, error)
	CountDeletedSince(ctx context.Context, typ string, since time.Time) (int64, error)
	CountTradesSince(ctx context.Context, typ models.OrderType, since time.Time) (int64, error)
	SumTradeAmountSince(ctx context.Context, typ models.OrderType, since time.Time) (int64, error)
	SumTradePriceSince(ctx context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error)
	AvgTradePriceSince(ctx context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error)
	TradeSeries(ctx context.Context, typ models.OrderType, bucket string, since time.Time) ([]models.TradeBucket, error)
}
