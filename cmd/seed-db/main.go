// Command seed-db loads coupon and order fixtures into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/repository"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL)" flag:"database-url"`
	CouponsFile string `default:"db/seed/coupons.json" usage:"path to coupons JSON file" flag:"coupons-file"`
	OrdersFile  string `default:"db/seed/orders.json" usage:"path to orders JSON file" flag:"orders-file"`
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url, SHOP_DATABASE_URL or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rules, err := loadRules(cfg.CouponsFile)
	if err != nil {
		return errors.Wrap(err, "load coupons")
	}
	if err := repository.NewCouponRepository(pool).Upsert(ctx, rules); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	for _, r := range rules {
		lg.Info("Upserted coupon",
			zap.String("code", r.Code),
			zap.String("type", string(r.Type)),
			zap.Bool("active", r.Active),
		)
	}

	orders, err := loadOrders(cfg.OrdersFile)
	if err != nil {
		return errors.Wrap(err, "load orders")
	}
	if err := repository.NewOrderRepository(pool).Upsert(ctx, orders); err != nil {
		return errors.Wrap(err, "seed orders")
	}
	for _, o := range orders {
		lg.Info("Upserted order", zap.String("id", o.ID), zap.Stringer("status", o.Status))
	}
	return nil
}
