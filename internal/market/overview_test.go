package market_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
	"ftnmarket/internal/storetest"
)

func TestAverageActivePrice_GuidePriceFallback(t *testing.T) {
	store := storetest.New()
	svc := market.NewService(store, zap.NewNop(), market.Config{GuidePrice: dec("0.1")})
	ctx := context.Background()

	// Four orders: below the sample threshold, the guide price wins.
	for i, p := range []string{"0.1", "0.12", "0.14", "0.16"} {
		_, err := svc.PublishOrder(ctx, models.OrderSell, dec(p), 100, testUser(fmt.Sprintf("u%d", i)))
		require.NoError(t, err)
	}
	avg, err := svc.AverageActivePrice(ctx, models.OrderSell)
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("0.1")), "got %s", avg)

	// The fifth order tips it over: a real average, rounded to 3 decimals.
	_, err = svc.PublishOrder(ctx, models.OrderSell, dec("0.18"), 100, testUser("u4"))
	require.NoError(t, err)
	avg, err = svc.AverageActivePrice(ctx, models.OrderSell)
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("0.14")), "got %s", avg)

	// The other side still has no data.
	avg, err = svc.AverageActivePrice(ctx, models.OrderBuy)
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("0.1")))
}

func TestMarketOverview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sell, err := svc.PublishOrder(ctx, models.OrderSell, dec("0.1"), 1000, testUser("s"))
	require.NoError(t, err)
	require.NoError(t, sell.ChangeTradedAmount(ctx, 400))

	buy, err := svc.PublishOrder(ctx, models.OrderBuy, dec("0.09"), 500, testUser("b"))
	require.NoError(t, err)
	require.NoError(t, buy.SetAllTraded(ctx))

	del, err := svc.PublishOrder(ctx, models.OrderSell, dec("0.11"), 200, testUser("d"))
	require.NoError(t, err)
	require.NoError(t, del.Delete(ctx))

	ov, err := svc.MarketOverview(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), ov.Sell.TradingCount)
	assert.Equal(t, int64(0), ov.Sell.FinishedCount)
	assert.Equal(t, int64(400), ov.Sell.Traded24hAmount)
	assert.Equal(t, int64(0), ov.Buy.TradingCount)
	assert.Equal(t, int64(1), ov.Buy.FinishedCount)
	assert.Equal(t, int64(500), ov.Buy.Traded24hAmount)
	assert.Equal(t, int64(900), ov.TotalTradedAmount)
	// 400 * 0.1 + 500 * 0.09
	assert.True(t, ov.TotalTradedPrice.Equal(dec("85")), "got %s", ov.TotalTradedPrice)
	assert.Equal(t, int64(1), ov.Finished24hCount)
	assert.Equal(t, int64(1), ov.Deleted24hCount)
}

func TestHourlyTradeSeries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.PublishOrder(ctx, models.OrderSell, dec("0.1"), 1000, testUser("s"))
	require.NoError(t, err)
	require.NoError(t, order.ChangeTradedAmount(ctx, 300))
	require.NoError(t, order.ChangeTradedAmount(ctx, 500))

	series, err := svc.HourlyTradeSeries(ctx, models.OrderSell, 24)
	require.NoError(t, err)
	// Both fills landed in the current hour bucket.
	require.Len(t, series, 1)
	assert.Equal(t, int64(500), series[0].Amount)
	assert.True(t, series[0].AvgPrice.Equal(dec("0.1")))

	empty, err := svc.HourlyTradeSeries(ctx, models.OrderBuy, 24)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
