package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
	"ftnmarket/internal/storetest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*market.Service, *storetest.Store) {
	t.Helper()
	store := storetest.New()
	svc := market.NewService(store, zap.NewNop(), market.Config{})
	return svc, store
}

func testUser(name string) *models.User {
	return &models.User{ID: uuid.New(), Name: name}
}

func publish(t *testing.T, svc *market.Service, typ models.OrderType, price string, amount int64) *market.Order {
	t.Helper()
	order, err := svc.PublishOrder(context.Background(), typ, dec(price), amount, testUser("seller"))
	require.NoError(t, err)
	return order
}

func TestPublishOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.PublishOrder(ctx, models.OrderSell, dec("0.12"), 5000, testUser("alice"))
	require.NoError(t, err)

	data := order.Data()
	assert.Equal(t, models.StatusTrading, data.Status)
	assert.Equal(t, int64(5000), data.TotalAmount)
	assert.Equal(t, int64(0), data.TradedAmount)
	assert.Equal(t, int64(5000), data.RemainingAmount)
	assert.True(t, data.TotalPrice.Equal(dec("600")), "total price %s", data.TotalPrice)
	assert.Equal(t, 24, data.EffectiveHours)
	// Expiry is anchored to the publish hour, not the publish instant.
	assert.Equal(t, data.PublishTime.Truncate(time.Hour).Add(24*time.Hour), data.ExpireTime)

	loaded, err := svc.Order(ctx, order.ID())
	require.NoError(t, err)
	assert.True(t, order.Equal(loaded))
}

func TestPublishOrder_TypeValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, typ := range []models.OrderType{"", "BUY", "swap"} {
		_, err := svc.PublishOrder(ctx, typ, dec("0.1"), 100, testUser("bob"))
		assert.ErrorIs(t, err, market.ErrTypeIllegal, "type %q", typ)
	}
}

func TestPublishOrder_PriceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		price string
	}{
		{"zero", "0"},
		{"at lower bound", "0.05"},
		{"below lower bound", "0.04"},
		{"above upper bound", "0.21"},
		{"too precise", "0.1234"},
		{"negative", "-0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PublishOrder(ctx, models.OrderBuy, dec(tc.price), 100, testUser("bob"))
			assert.ErrorIs(t, err, market.ErrPriceIllegal)
		})
	}

	// Upper bound itself is legal.
	_, err := svc.PublishOrder(ctx, models.OrderBuy, dec("0.2"), 100, testUser("carol"))
	assert.NoError(t, err)
}

func TestPublishOrder_AmountValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -1, 100_000_001} {
		_, err := svc.PublishOrder(ctx, models.OrderBuy, dec("0.1"), amount, testUser("bob"))
		assert.ErrorIs(t, err, market.ErrAmountIllegal, "amount %d", amount)
	}

	_, err := svc.PublishOrder(ctx, models.OrderBuy, dec("0.1"), 100_000_000, testUser("bob"))
	assert.NoError(t, err)
}

func TestPublishOrder_DuplicateTradingOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := testUser("dave")

	first, err := svc.PublishOrder(ctx, models.OrderSell, dec("0.1"), 100, owner)
	require.NoError(t, err)

	// Same side again is blocked while the first order trades.
	_, err = svc.PublishOrder(ctx, models.OrderSell, dec("0.11"), 200, owner)
	assert.ErrorIs(t, err, market.ErrDuplicateOrder)

	// The other side is fine.
	_, err = svc.PublishOrder(ctx, models.OrderBuy, dec("0.09"), 200, owner)
	assert.NoError(t, err)

	// Once the first leaves TRADING, the side frees up.
	require.NoError(t, first.Delete(ctx))
	_, err = svc.PublishOrder(ctx, models.OrderSell, dec("0.11"), 200, owner)
	assert.NoError(t, err)
}

func TestChangeTradedAmount_PartialFill(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)

	require.NoError(t, order.ChangeTradedAmount(ctx, 300))

	data := order.Data()
	assert.Equal(t, models.StatusTrading, data.Status)
	assert.Equal(t, int64(300), data.TradedAmount)
	assert.Equal(t, int64(700), data.RemainingAmount)
	assert.Nil(t, data.FinishTime)

	trades, err := svc.OrderTrades(ctx, order.ID())
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(300), trades[0].TradeAmount)
	assert.True(t, trades[0].UnitPrice.Equal(dec("0.1")))
	assert.True(t, trades[0].TotalPrice.Equal(dec("30")))
	assert.Equal(t, 1, store.TradeCount())
}

func TestChangeTradedAmount_FinishesAtTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderBuy, "0.1", 1000)

	require.NoError(t, order.ChangeTradedAmount(ctx, 400))
	require.NoError(t, order.ChangeTradedAmount(ctx, 1000))

	data := order.Data()
	assert.Equal(t, models.StatusFinished, data.Status)
	assert.Equal(t, int64(0), data.RemainingAmount)
	require.NotNil(t, data.FinishTime)

	// The persisted row carries the same terminal state.
	loaded, err := svc.Order(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, loaded.Data().Status)
	require.NotNil(t, loaded.Data().FinishTime)

	// Ledger invariant: recorded fills sum to the traded amount.
	trades, err := svc.OrderTrades(ctx, order.ID())
	require.NoError(t, err)
	var sum int64
	for _, tr := range trades {
		sum += tr.TradeAmount
	}
	assert.Equal(t, data.TradedAmount, sum)
}

func TestChangeTradedAmount_LedgerOrderStable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderBuy, "0.1", 1000)

	// Both fills land within the same second, so their trade times tie;
	// the ledger must still come back in fill order on every read.
	require.NoError(t, order.ChangeTradedAmount(ctx, 400))
	require.NoError(t, order.ChangeTradedAmount(ctx, 1000))

	for i := 0; i < 50; i++ {
		trades, err := svc.OrderTrades(ctx, order.ID())
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, int64(400), trades[0].TradeAmount, "read %d", i)
		assert.Equal(t, int64(600), trades[1].TradeAmount, "read %d", i)
	}
}

func TestChangeTradedAmount_NoStatusGuard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)
	require.NoError(t, order.Delete(ctx))

	// Fills carry only the amount guards; a deleted order still accepts one
	// and keeps its status.
	require.NoError(t, order.ChangeTradedAmount(ctx, 300))
	data := order.Data()
	assert.Equal(t, models.StatusDeleted, data.Status)
	assert.Equal(t, int64(300), data.TradedAmount)
	assert.Equal(t, int64(700), data.RemainingAmount)

	// A fill to the full amount pulls even a deleted order into FINISHED.
	require.NoError(t, order.ChangeTradedAmount(ctx, 1000))
	assert.Equal(t, models.StatusFinished, order.Data().Status)
	require.NotNil(t, order.Data().FinishTime)
}

func TestChangeTradedAmount_Rejections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)
	require.NoError(t, order.ChangeTradedAmount(ctx, 500))

	for _, amount := range []int64{-1, 1001, 500, 400} {
		err := order.ChangeTradedAmount(ctx, amount)
		assert.ErrorIs(t, err, market.ErrAmountIllegal, "amount %d", amount)
	}

	// Rejections are no-ops: no state change, no ledger row.
	data := order.Data()
	assert.Equal(t, int64(500), data.TradedAmount)
	assert.Equal(t, int64(500), data.RemainingAmount)
	assert.Equal(t, models.StatusTrading, data.Status)
	assert.Equal(t, 1, store.TradeCount())
}

func TestSetAllTraded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)
	require.NoError(t, order.ChangeTradedAmount(ctx, 250))

	require.NoError(t, order.SetAllTraded(ctx))
	assert.Equal(t, models.StatusFinished, order.Data().Status)

	// A second call has nothing left to trade.
	assert.ErrorIs(t, order.SetAllTraded(ctx), market.ErrAmountIllegal)
}

func TestChangeUnitPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)

	require.NoError(t, order.ChangeUnitPrice(ctx, dec("0.15")))
	data := order.Data()
	assert.True(t, data.UnitPrice.Equal(dec("0.15")))
	assert.True(t, data.TotalPrice.Equal(dec("150")))

	assert.ErrorIs(t, order.ChangeUnitPrice(ctx, dec("0.3")), market.ErrPriceIllegal)
}

func TestChangeUnitPrice_AllowedAfterFinish(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)
	require.NoError(t, order.SetAllTraded(ctx))

	// Repricing carries no status guard; the order keeps its terminal state.
	require.NoError(t, order.ChangeUnitPrice(ctx, dec("0.12")))
	assert.Equal(t, models.StatusFinished, order.Data().Status)
	assert.True(t, order.Data().UnitPrice.Equal(dec("0.12")))
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)

	require.NoError(t, order.Delete(ctx))
	data := order.Data()
	assert.Equal(t, models.StatusDeleted, data.Status)
	require.NotNil(t, data.DeleteTime)

	// The row survives as history.
	loaded, err := svc.Order(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, loaded.Data().Status)

	// Terminal states reject further transitions.
	assert.ErrorIs(t, order.Delete(ctx), market.ErrOrderStatus)
	assert.ErrorIs(t, order.Expire(ctx), market.ErrOrderStatus)
	assert.ErrorIs(t, order.Ban(ctx), market.ErrOrderStatus)
}

func TestExpire(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)
	scheduled := order.Data().ExpireTime

	require.NoError(t, order.Expire(ctx))
	data := order.Data()
	assert.Equal(t, models.StatusExpired, data.Status)
	// expire_time now records the actual expiry moment.
	assert.True(t, data.ExpireTime.Before(scheduled))
}

func TestBan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := publish(t, svc, models.OrderSell, "0.1", 1000)

	require.NoError(t, order.Ban(ctx))
	assert.Equal(t, models.StatusBanned, order.Data().Status)
	assert.ErrorIs(t, order.Ban(ctx), market.ErrOrderStatus)
}

func TestOrderNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Order(context.Background(), uuid.New())
	assert.ErrorIs(t, err, market.ErrOrderNotFound)
}

func TestActiveOrdersSorting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, p := range []string{"0.1", "0.15", "0.08"} {
		publish(t, svc, models.OrderBuy, p, 100)
		publish(t, svc, models.OrderSell, p, 100)
	}

	buys, err := svc.ActiveOrders(ctx, "buy", 0)
	require.NoError(t, err)
	require.Len(t, buys, 3)
	assert.True(t, buys[0].UnitPrice.Equal(dec("0.15")), "buy side lists highest bid first")

	sells, err := svc.ActiveOrders(ctx, "sell", 0)
	require.NoError(t, err)
	require.Len(t, sells, 3)
	assert.True(t, sells[0].UnitPrice.Equal(dec("0.08")), "sell side lists lowest ask first")
}
