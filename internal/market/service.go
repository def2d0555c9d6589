package market

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ftnmarket/internal/models"
)

// Config carries the tunables of the market core.
type Config struct {
	// EffectiveHours is how long a freshly published order stays active.
	EffectiveHours int
	// GuidePrice is returned by average-price projections when too few rows
	// exist for a meaningful average.
	GuidePrice decimal.Decimal
}

// Service loads and creates order aggregates and serves the read-side
// projections. All mutation goes through the Order type it hands out.
type Service struct {
	store Store
	log   *zap.Logger
	cfg   Config
}

// NewService creates a market service.
func NewService(store Store, log *zap.Logger, cfg Config) *Service {
	if cfg.EffectiveHours <= 0 {
		cfg.EffectiveHours = 24
	}
	if cfg.GuidePrice.IsZero() {
		cfg.GuidePrice = decimal.RequireFromString("0.1")
	}
	return &Service{store: store, log: log, cfg: cfg}
}

// Order loads an order aggregate by ID.
func (s *Service) Order(ctx context.Context, id uuid.UUID) (*Order, error) {
	row, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if row == nil {
		return nil, ErrOrderNotFound
	}
	return s.wrap(*row), nil
}

// PublishOrder validates and inserts a new TRADING order for the owner.
// At most one TRADING order may exist per (owner, type) pair.
func (s *Service) PublishOrder(ctx context.Context, typ models.OrderType, unitPrice decimal.Decimal, totalAmount int64, owner *models.User) (*Order, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w, got %q", ErrTypeIllegal, typ)
	}
	if err := validateUnitPrice(unitPrice); err != nil {
		return nil, err
	}
	if err := validateTotalAmount(totalAmount); err != nil {
		return nil, err
	}

	existing, err := s.store.FindTradingOrder(ctx, owner.ID, typ)
	if err != nil {
		return nil, fmt.Errorf("check active order: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateOrder
	}

	now := nowSecond()
	row := models.Order{
		ID:              uuid.New(),
		Status:          models.StatusTrading,
		Type:            typ,
		PublishTime:     now,
		EffectiveHours:  s.cfg.EffectiveHours,
		ExpireTime:      scheduledExpiry(now, s.cfg.EffectiveHours),
		UnitPrice:       unitPrice,
		TotalPrice:      totalPrice(unitPrice, totalAmount),
		TotalAmount:     totalAmount,
		TradedAmount:    0,
		RemainingAmount: totalAmount,
		UserID:          owner.ID,
		UserName:        owner.Name,
	}
	if err := s.store.InsertOrder(ctx, &row); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return s.wrap(row), nil
}

// ActiveOrders lists TRADING orders, best counterparty price first: BUY by
// unit price descending, SELL ascending. typ is "buy", "sell" or FilterAll.
func (s *Service) ActiveOrders(ctx context.Context, typ string, limit int) ([]models.Order, error) {
	return s.store.ListActiveOrders(ctx, typ, limit)
}

// TradingOrders loads every TRADING order as an aggregate, for the expiry
// sweep.
func (s *Service) TradingOrders(ctx context.Context) ([]*Order, error) {
	rows, err := s.store.ListTradingOrders(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]*Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, s.wrap(row))
	}
	return orders, nil
}

// UserOrders lists a user's orders, newest first.
func (s *Service) UserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	return s.store.ListUserOrders(ctx, userID, limit)
}

// Trade loads a single trade row.
func (s *Service) Trade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	row, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load trade: %w", err)
	}
	if row == nil {
		return nil, ErrTradeNotFound
	}
	return row, nil
}

// OrderTrades lists the fills recorded against one order.
func (s *Service) OrderTrades(ctx context.Context, orderID uuid.UUID) ([]models.Trade, error) {
	return s.store.ListOrderTrades(ctx, orderID)
}

// UserTrades lists a user's fills, newest first.
func (s *Service) UserTrades(ctx context.Context, userID uuid.UUID, limit int) ([]models.Trade, error) {
	return s.store.ListUserTrades(ctx, userID, limit)
}

func (s *Service) wrap(row models.Order) *Order {
	return &Order{svc: s, row: row, dirty: orderSchema.NewTracker()}
}

// nowSecond strips sub-second precision so stored timestamps compare cleanly.
func nowSecond() time.Time {
	return time.Now().Truncate(time.Second)
}

// scheduledExpiry computes the expiry deadline: the publish hour boundary
// plus the effective window.
func scheduledExpiry(publish time.Time, effectiveHours int) time.Time {
	return publish.Truncate(time.Hour).Add(time.Duration(effectiveHours) * time.Hour)
}

func totalPrice(unit decimal.Decimal, amount int64) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(amount)).Round(2)
}
