package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pennypal/internal/amqp"
	"pennypal/internal/backend"
	"pennypal/internal/cache"
	"pennypal/internal/cli"
	"pennypal/internal/config"
	apphttp "pennypal/internal/http"
	"pennypal/internal/log"
	"pennypal/internal/services"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.GracefulShutdown()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Pennypal stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Pennypal stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	eng, err := cli.BuildEngine(cfg, res, logger)
	if err != nil {
		return err
	}

	var (
		publisher services.ChangePublisher
		broker    *amqp.Client
	)
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer broker.Close()
		publisher = broker
	} else {
		logger.Info("AMQP_URL not set, ledger changes stay in this process")
	}

	writes := services.NewLedgerService(res.Writer, publisher, eng.Rates(), logger)
	server := apphttp.NewServer(apphttp.Deps{
		Engine: eng,
		Ledger: res.Ledger,
		Badges: res.Badges,
		Writes: writes,
	}, apphttp.Options{
		Addr:          ":" + cfg.Port,
		CORSOrigins:   cfg.CORSOrigins,
		ViewCacheSize: cfg.ViewCacheSize,
		ViewCacheTTL:  cfg.ViewCacheTTL,
	}, logger)

	caches := cache.NewManager(logger)
	caches.Register(server.ViewCache())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return caches.Run(ctx, cacheSweepInterval) })
	if res.Background != nil {
		g.Go(func() error { return res.Background(ctx) })
	}
	if broker != nil && res.Refresher != nil {
		g.Go(func() error { return broker.Consume(ctx, refreshHandler(res.Refresher)) })
	}

	logger.Info("Pennypal started",
		log.FieldBackend, res.Type.String(),
		"base_currency", eng.Rates().Base(),
		"port", cfg.Port)
	return g.Wait()
}

// refreshHandler reloads the user named by a change message so live
// watchers in this process recompute.
func refreshHandler(r backend.Refresher) amqp.Handler {
	return func(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
		return r.Refresh(ctx, msg.UserID)
	}
}
