package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/obs"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := obs.NewLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, satu per topic. Context terpisah supaya masih bisa flush setelah sinyal.
	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, logger)
	placed.Start(pctx)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, logger)
	changed.Start(pctx)

	catalogRepo := &postgres.CatalogRepo{DB: db}
	orderRepo := &postgres.OrderRepo{DB: db}
	userRepo := &postgres.UserRepo{DB: db}
	mgr := &orders.Manager{
		Catalog: catalogRepo,
		Orders:  orderRepo,
		Tx:      &postgres.TxManager{DB: db},
		Log:     logger,
		Placed:  placed,
		Changed: changed,
		Service: cfg.ServiceName,
	}

	router := httpx.NewRouter(logger)
	auth := &httpx.Auth{Tokens: &redisx.SessionVerifier{R: rdb}, Users: userRepo, Log: logger}
	(&httpx.OrdersHandler{
		Engine:  mgr,
		Orders:  orderRepo,
		Cache:   &redisx.OrderCache{R: rdb},
		Idem:    &redisx.Idempotency{R: rdb},
		Log:     logger,
		Timeout: cfg.RequestTimeout,
	}).Register(router, auth)
	(&httpx.ProductsHandler{Products: catalogRepo, Log: logger}).Register(router, auth)
	(&httpx.UsersHandler{Users: userRepo, Log: logger}).Register(router, auth)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)

		placed.Close() // tutup inbox -> flush & close writer
		changed.Close()
		placed.WaitClosed()
		changed.WaitClosed()

		if terr := shutdownTracing(sctx); terr != nil {
			logger.Warn("tracing shutdown", zap.Error(terr))
		}
		return err
	})
	return g.Wait()
}
