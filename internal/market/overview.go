package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ftnmarket/internal/models"
)

// minSampleSize is the smallest row count an average is computed from.
// Below it the projection reports the guide price instead; an explicit
// "insufficient data" policy, not an error.
const minSampleSize = 5

// SideStats is the per-side slice of the market overview.
type SideStats struct {
	TradingCount    int64           `json:"trading_count"`
	FinishedCount   int64           `json:"finished_count"`
	AvgActivePrice  decimal.Decimal `json:"avg_active_price"`
	Traded24hAmount int64           `json:"traded_24h_amount"`
	Traded24hPrice  decimal.Decimal `json:"traded_24h_price"`
	Avg24hPrice     decimal.Decimal `json:"avg_24h_price"`
}

// Overview is the read-side market summary. It reflects the database at
// query time and nothing stronger.
type Overview struct {
	Buy               SideStats       `json:"buy"`
	Sell              SideStats       `json:"sell"`
	TotalTradedAmount int64           `json:"total_traded_amount"`
	TotalTradedPrice  decimal.Decimal `json:"total_traded_price"`
	Finished24hCount  int64           `json:"finished_24h_count"`
	Deleted24hCount   int64           `json:"deleted_24h_count"`
}

// AverageActivePrice is the mean unit price of TRADING orders of one side,
// rounded to 3 decimals, or the guide price when fewer than minSampleSize
// such orders exist.
func (s *Service) AverageActivePrice(ctx context.Context, typ models.OrderType) (decimal.Decimal, error) {
	count, err := s.store.CountOrders(ctx, models.StatusTrading, string(typ))
	if err != nil {
		return decimal.Zero, fmt.Errorf("count active orders: %w", err)
	}
	if count < minSampleSize {
		return s.cfg.GuidePrice, nil
	}
	avg, err := s.store.AverageActivePrice(ctx, typ)
	if err != nil {
		return decimal.Zero, fmt.Errorf("average active price: %w", err)
	}
	return avg.Round(3), nil
}

// Average24hPrice is the mean unit price of the last 24 hours of fills of
// one side, rounded to 3 decimals, or the guide price when fewer than
// minSampleSize fills landed in the window.
func (s *Service) Average24hPrice(ctx context.Context, typ models.OrderType) (decimal.Decimal, error) {
	since := time.Now().Add(-24 * time.Hour)
	count, err := s.store.CountTradesSince(ctx, typ, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("count 24h trades: %w", err)
	}
	if count < minSampleSize {
		return s.cfg.GuidePrice, nil
	}
	avg, err := s.store.AvgTradePriceSince(ctx, typ, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("average 24h price: %w", err)
	}
	return avg.Round(3), nil
}

// MarketOverview assembles the full read-side summary.
func (s *Service) MarketOverview(ctx context.Context) (*Overview, error) {
	since := time.Now().Add(-24 * time.Hour)
	ov := &Overview{}

	for _, typ := range []models.OrderType{models.OrderBuy, models.OrderSell} {
		side := SideStats{}
		var err error
		if side.TradingCount, err = s.store.CountOrders(ctx, models.StatusTrading, string(typ)); err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
		if side.FinishedCount, err = s.store.CountOrders(ctx, models.StatusFinished, string(typ)); err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
		if side.AvgActivePrice, err = s.AverageActivePrice(ctx, typ); err != nil {
			return nil, err
		}
		if side.Traded24hAmount, err = s.store.SumTradeAmountSince(ctx, typ, since); err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
		if side.Traded24hPrice, err = s.store.SumTradePriceSince(ctx, typ, since); err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
		if side.Avg24hPrice, err = s.Average24hPrice(ctx, typ); err != nil {
			return nil, err
		}
		if typ == models.OrderBuy {
			ov.Buy = side
		} else {
			ov.Sell = side
		}
	}

	var err error
	if ov.TotalTradedAmount, err = s.store.TotalTradedAmount(ctx); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	if ov.TotalTradedPrice, err = s.store.TotalTradedPrice(ctx); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	if ov.Finished24hCount, err = s.store.CountFinishedSince(ctx, FilterAll, since); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	if ov.Deleted24hCount, err = s.store.CountDeletedSince(ctx, FilterAll, since); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	return ov, nil
}

// HourlyTradeSeries buckets the last n hours of fills by hour.
func (s *Service) HourlyTradeSeries(ctx context.Context, typ models.OrderType, hours int) ([]models.TradeBucket, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return s.store.TradeSeries(ctx, typ, "hour", since)
}

// DailyTradeSeries buckets the last n days of fills by day.
func (s *Service) DailyTradeSeries(ctx context.Context, typ models.OrderType, days int) ([]models.TradeBucket, error) {
	since := time.Now().AddDate(0, 0, -days)
	return s.store.TradeSeries(ctx, typ, "day", since)
}
