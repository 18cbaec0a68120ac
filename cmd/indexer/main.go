package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/alert"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/api"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/polygon"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/ratelimit"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/circuitbreaker"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/config"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/netflow"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/pipeline"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/pipeline/retry"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store/postgres"
	redispkg "github.com/kritz999/Kritika-Real-time-polygon/internal/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting netflow-indexer",
		"rpc_http", cfg.RPC.HTTPURL,
		"rpc_ws", cfg.RPC.WSURL,
		"token", cfg.Indexer.TokenAddress,
		"watched_addresses", len(cfg.Indexer.WatchedAddresses),
		"http_port", cfg.Server.HTTPPort,
	)

	// Connect to PostgreSQL
	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	st := postgres.NewStore(db)

	// Seed the in-memory accumulator from the persisted row so a restart
	// resumes exactly where the last commit left off.
	if err := st.Netflow().EnsureExists(context.Background(), cfg.Indexer.TokenAddress); err != nil {
		logger.Error("failed to seed cumulative netflow row", "error", err)
		os.Exit(1)
	}
	persisted, err := st.Netflow().Get(context.Background(), cfg.Indexer.TokenAddress)
	if err != nil {
		logger.Error("failed to read cumulative netflow", "error", err)
		os.Exit(1)
	}
	accumulator, err := netflow.NewAccumulator(cfg.Indexer.TokenAddress, persisted.BlockNumber, persisted.Value)
	if err != nil {
		logger.Error("failed to restore accumulator state", "error", err)
		os.Exit(1)
	}
	logger.Info("accumulator restored",
		"block_number", persisted.BlockNumber,
		"cumulative_netflow", persisted.Value,
	)

	limiter := ratelimit.NewLimiter(cfg.RPC.RateLimitRPS, cfg.RPC.RateBurst, "polygon")
	adapter := polygon.NewAdapter(cfg.RPC.HTTPURL, cfg.RPC.WSURL, limiter, logger)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("rpc circuit breaker state changed", "from", from, "to", to)
		},
	})

	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BackoffInitial: time.Duration(cfg.Retry.BackoffInitialMS) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Retry.BackoffMaxMS) * time.Millisecond,
	}

	var alerter alert.Alerter
	var channels []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) > 0 {
		alerter = alert.NewMultiAlerter(time.Duration(cfg.Alert.CooldownMin)*time.Minute, logger, channels...)
	} else {
		alerter = &alert.NoopAlerter{}
	}

	var publisher pipeline.SnapshotPublisher
	if cfg.Redis.PublishSnapshots {
		redisPublisher, err := redispkg.NewPublisher(cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisPublisher.Close()
		publisher = redisPublisher
		logger.Info("snapshot publishing enabled")
	}

	health := pipeline.NewHealth()
	watched := model.NewAddressSet(cfg.Indexer.WatchedAddresses)

	fetcher := pipeline.NewFetcher(adapter, breaker, policy, cfg.Indexer.TokenAddress, watched, logger)
	writer := pipeline.NewWriter(st, accumulator, publisher, alerter, health, logger)
	pipe := pipeline.New(
		pipeline.Config{ChannelBufferSize: cfg.Indexer.ChannelBufferSize},
		adapter, fetcher, writer, st.State(), alerter, health, logger,
	)

	server := api.NewServer(cfg.Indexer.TokenAddress, accumulator, st.Netflow(), health, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gCtx, cfg.Server.HTTPPort)
	})

	g.Go(func() error {
		return pipe.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer shut down gracefully")
}
