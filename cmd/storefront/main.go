package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	grpcserver "github.com/fjod/go_cart/storefront/internal/grpc"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("storefront stopped with error")
	}
	log.Info().Msg("storefront stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	creds := &repository.Credentials{
		Dialect:           repository.Dialect(cfg.StoreDriver),
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		SQLitePath:        cfg.SQLitePath,
		MigrationsDirPath: cfg.MigrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("database migrations completed")

	var cartCache cache.CartCache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, cart views will hit the store until it recovers")
		}
		cancel()
		cartCache = cache.NewRedisCache(redisClient, cfg.CartCacheTTL)
	}

	m := metrics.New()
	carts := service.NewCartService(repo, cartCache, log, cfg.CheckoutMaxAttempts)
	checkout := service.NewCheckoutService(repo, cartCache, log,
		service.WithObserver(m),
		service.WithMaxAttempts(cfg.CheckoutMaxAttempts),
	)
	orders := service.NewOrderService(repo, log, cfg.CheckoutMaxAttempts)

	router := h.NewRouter(h.Dependencies{
		Cart:           carts,
		Checkout:       checkout,
		Orders:         orders,
		Auth:           auth.NewJWTAuthenticator(cfg.JWTSecret, 30*time.Second),
		Metrics:        m,
		Health:         repo.Ping,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	health := grpcserver.NewHealthServer(repo, cfg.HealthCheckInterval, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("grpc health server listening")
		return health.Server().Serve(lis)
	})

	g.Go(func() error {
		health.Watch(gctx)
		return nil
	})

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.OutboxTopic, brokers...)
		defer writer.Close()

		poller := publisher.NewOutboxPoller(repo, writer, log,
			publisher.WithInterval(cfg.OutboxPollInterval),
			publisher.WithBatchSize(cfg.OutboxBatchSize),
			publisher.WithRecorder(m),
		)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, outbox events stay pending")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down storefront")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		health.Server().GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
