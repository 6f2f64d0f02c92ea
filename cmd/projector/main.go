package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/obs"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/projector"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	name := cfg.ServiceName + "-projector"
	logger, err := obs.NewLogger(cfg.LogLevel, name)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, name, logger); err != nil {
		logger.Fatal("projector exited", zap.Error(err))
	}
}

func run(cfg config.Config, name string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB, read-only dari sisi projector
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Orders: &postgres.OrderRepo{DB: db},
		Cache:  &redisx.OrderCache{R: rdb},
		Dedup:  &redisx.Dedup{R: rdb, Service: name},
		Log:    logger,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, projector.Topics, cfg.ProjectorWorkers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("projector consumer started",
			zap.String("group", cfg.ProjectorGroup),
			zap.String("topics", strings.Join(projector.Topics, ",")),
			zap.Int("workers", cfg.ProjectorWorkers))
		return cons.Start(gctx, svc.Handle)
	})
	err = g.Wait()
	logger.Info("projector stopped")
	return err
}
