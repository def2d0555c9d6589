// Package sweep runs the scheduled maintenance pass: expiring overdue
// orders and purging dead session tokens.
package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ftnmarket/internal/auth"
	cronrunner "ftnmarket/internal/cron"
	"ftnmarket/internal/market"
)

// DefaultSpec runs the sweep at the top of every hour.
const DefaultSpec = "0 * * * *"

// Job is one maintenance pass over the live data.
type Job struct {
	market *market.Service
	auth   *auth.Service
	log    *zap.Logger
}

func New(market *market.Service, auth *auth.Service, log *zap.Logger) *Job {
	return &Job{market: market, auth: auth, log: log}
}

// Register schedules the job on the runner.
func (j *Job) Register(r *cronrunner.Runner, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	_, err := r.Add(spec, j.Run)
	return err
}

// Run expires every TRADING order whose deadline has passed, then purges
// expired tokens. One bad order never stops the pass: a status conflict
// means another writer finished or removed the order between the listing
// and the transition, so it is skipped silently; any other failure is
// logged and the pass moves on.
func (j *Job) Run(ctx context.Context) {
	start := time.Now()
	orders, err := j.market.TradingOrders(ctx)
	if err != nil {
		j.log.Error("sweep: list trading orders", zap.Error(err))
		return
	}

	var expired int
	for _, o := range orders {
		if o.Data().ExpireTime.After(start) {
			continue
		}
		if err := o.Expire(ctx); err != nil {
			if errors.Is(err, market.ErrOrderStatus) {
				continue
			}
			j.log.Error("sweep: expire order",
				zap.String("order_id", o.ID().String()), zap.Error(err))
			continue
		}
		expired++
	}

	purged, err := j.auth.PurgeExpiredTokens(ctx)
	if err != nil {
		j.log.Error("sweep: purge tokens", zap.Error(err))
	}

	j.log.Info("sweep finished",
		zap.Int("orders_expired", expired),
		zap.Int64("tokens_purged", purged),
		zap.Duration("took", time.Since(start)))
}
