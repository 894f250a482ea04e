// Command coupon-ingest bulk-imports gzipped JSON-lines coupon batches.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/repository"
)

type config struct {
	DatabaseURL   string  `usage:"PostgreSQL connection URL (or DATABASE_URL)" flag:"database-url"`
	DataDir       string  `default:"data" usage:"directory containing coupon batches" flag:"data-dir"`
	Pattern       string  `default:"*.jsonl.gz" usage:"glob of batch files inside data-dir"`
	BatchSize     int     `default:"5000" usage:"coupons per COPY batch" flag:"batch-size"`
	BloomCapacity uint    `default:"10000000" usage:"expected number of distinct codes" flag:"bloom-capacity"`
	BloomFPR      float64 `default:"0.001" usage:"bloom filter false positive rate" flag:"bloom-fpr"`
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
		lg.Fatal("Coupon ingest failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	files, err := filepath.Glob(filepath.Join(cfg.DataDir, cfg.Pattern))
	if err != nil {
		return errors.Wrap(err, "list batch files")
	}
	if len(files) == 0 {
		lg.Info("No batch files found", zap.String("dir", cfg.DataDir), zap.String("pattern", cfg.Pattern))
		return nil
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, int32(2))
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ing := &ingester{
		lg:        lg,
		importer:  repository.NewCouponRepository(pool),
		batchSize: cfg.BatchSize,
		capacity:  cfg.BloomCapacity,
		fpr:       cfg.BloomFPR,
	}
	st, err := ing.Run(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Coupon ingest completed",
		zap.Int("files", len(files)),
		zap.Int64("lines", st.Lines),
		zap.Int64("invalid", st.Invalid),
		zap.Int64("deferred", st.Deferred),
		zap.Int64("inserted", st.Inserted),
	)
	return nil
}
