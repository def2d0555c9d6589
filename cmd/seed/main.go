// Seed the database with demo accounts, orders and fills. Everything goes
// through the aggregates so the seeded rows obey the same invariants as
// live traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ftnmarket/internal/auth"
	"ftnmarket/internal/config"
	"ftnmarket/internal/db"
	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, false)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	database, err := db.New(ctx, db.Config{DSN: cfg.DB.DSN})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	var existing int64
	if err := database.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&existing); err != nil {
		log.Fatalf("failed to check orders: %v", err)
	}
	if existing > 0 {
		fmt.Printf("Database already has %d orders. No need to seed.\n", existing)
		os.Exit(0)
	}

	zl := zap.NewNop()
	marketSvc := market.NewService(database, zl, market.Config{})
	authSvc := auth.NewService(database, zl, 0, nil)

	seller, err := authSvc.Signup(ctx, "seller1", "seedpass1", "seedpass1", 0, 1)
	if err != nil {
		log.Fatalf("failed to create seller: %v", err)
	}
	buyer, err := authSvc.Signup(ctx, "buyer1", "seedpass2", "seedpass2", 0, 1)
	if err != nil {
		log.Fatalf("failed to create buyer: %v", err)
	}

	sellerData := seller.Data()
	sellOrder, err := marketSvc.PublishOrder(ctx, models.OrderSell,
		decimal.RequireFromString("0.12"), 5000, &sellerData)
	if err != nil {
		log.Fatalf("failed to publish sell order: %v", err)
	}

	buyerData := buyer.Data()
	buyOrder, err := marketSvc.PublishOrder(ctx, models.OrderBuy,
		decimal.RequireFromString("0.095"), 10000, &buyerData)
	if err != nil {
		log.Fatalf("failed to publish buy order: %v", err)
	}

	// Two partial fills against the sell order, one that finishes the buy.
	if err := sellOrder.ChangeTradedAmount(ctx, 1500); err != nil {
		log.Fatalf("failed to fill sell order: %v", err)
	}
	if err := sellOrder.ChangeTradedAmount(ctx, 3000); err != nil {
		log.Fatalf("failed to fill sell order: %v", err)
	}
	if err := buyOrder.SetAllTraded(ctx); err != nil {
		log.Fatalf("failed to finish buy order: %v", err)
	}

	fmt.Println("Successfully seeded the database!")
}
