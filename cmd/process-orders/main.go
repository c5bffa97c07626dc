// Command process-orders runs one invoicing cycle and exits. It is meant to be
// scheduled by cron.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/order-invoicer/internal/app"
	"github.com/xenking/order-invoicer/internal/storage/postgres"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		var outDir string
		cfg, err := appkg.LoadConfig(func(fs *flag.FlagSet) {
			fs.StringVar(&outDir, "out", "", "also write the invoice batch PDF into this directory")
		})
		if err != nil {
			return err
		}
		return run(ctx, lg, m, cfg, outDir)
	})
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *appkg.Config, outDir string) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc, _, err := appkg.NewPipeline(lg, m.TracerProvider(), m.MeterProvider(), cfg, pool)
	if err != nil {
		return err
	}

	summary, err := svc.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "process orders")
	}

	fields := []zap.Field{
		zap.Int("total_orders", summary.Total),
		zap.Int("confirmed_orders", summary.Confirmed),
	}
	for reason, n := range summary.Rejected {
		fields = append(fields, zap.Int("rejected."+reason.String(), n))
	}
	lg.Info("Processing complete", fields...)

	if outDir == "" || summary.Document == nil {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(outDir, summary.Document.FileName)
	if err := os.WriteFile(path, summary.Document.Data, 0o644); err != nil {
		return errors.Wrap(err, "write invoice batch")
	}
	lg.Info("Invoice batch written", zap.String("path", path))
	return nil
}
