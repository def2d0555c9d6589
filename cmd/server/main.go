package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ftnmarket/internal/api"
	"ftnmarket/internal/auth"
	"ftnmarket/internal/config"
	cronrunner "ftnmarket/internal/cron"
	"ftnmarket/internal/db"
	"ftnmarket/internal/logger"
	"ftnmarket/internal/market"
	"ftnmarket/internal/sweep"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envOnly := flag.Bool("env-only", false, "skip the config file, use env vars only")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envOnly)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, db.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	})
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	guidePrice, err := decimal.NewFromString(cfg.Market.GuidePrice)
	if err != nil {
		zl.Fatal("invalid guide price", zap.String("value", cfg.Market.GuidePrice))
	}

	marketSvc := market.NewService(database, zl.Named("market"), market.Config{
		EffectiveHours: cfg.Market.EffectiveHours,
		GuidePrice:     guidePrice,
	})
	authSvc := auth.NewService(database, zl.Named("auth"), cfg.Auth.TokenTTL, auth.NewJianshuResolver())

	if cfg.Cron.Enabled {
		runner := cronrunner.New(zl.Named("cron"), ctx)
		job := sweep.New(marketSvc, authSvc, zl.Named("sweep"))
		if err := job.Register(runner, cfg.Cron.Sweep); err != nil {
			zl.Fatal("failed to schedule sweep", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	broadcaster := api.NewBroadcaster(marketSvc, zl.Named("ws"), cfg.Server.BroadcastInterval)
	go broadcaster.Run(ctx)

	handler := api.NewHandler(marketSvc, authSvc, zl.Named("api"))
	router := api.Router(handler, broadcaster.Handle)

	server := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	zl.Info("starting server", zap.String("addr", cfg.Server.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zl.Fatal("server failed", zap.Error(err))
	}
}
