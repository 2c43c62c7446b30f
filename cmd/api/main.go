package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"race-kart/internal/abandoned"
	"race-kart/internal/cart"
	"race-kart/internal/config"
	"race-kart/internal/coupon"
	"race-kart/internal/database"
	"race-kart/internal/events"
	"race-kart/internal/handler"
	"race-kart/internal/payment"
	"race-kart/internal/repository"
	"race-kart/internal/router"
	"race-kart/internal/service"
	"race-kart/internal/telemetry"

	"github.com/rs/zerolog"
)

// guestSessionMaxAge keeps the guest session cookie for 30 days.
const guestSessionMaxAge = 30 * 24 * 60 * 60

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting race-kart API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize repositories
	raceRepo := repository.NewRaceRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	guestCartRepo := repository.NewGuestCartRepository(pool, logger)
	abandonedRepo := repository.NewAbandonedCartRepository(pool, logger)
	couponRepo := repository.NewCouponRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Coupon files come from S3 when enabled, with the local file system as fallback
	couponLoader, err := newCouponLoader(ctx, cfg.S3, logger)
	if err != nil {
		return err
	}

	gateway, err := newPaymentGateway(cfg.Payment, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Initialize services
	tracker := abandoned.NewTracker(abandonedRepo, logger)
	raceService := service.NewRaceService(raceRepo, logger)
	orderService := service.NewOrderService(orderRepo, cfg.Cart.BonusThreshold, logger)
	checkoutService := service.NewCheckoutService(
		orderService,
		coupon.NewValidator(couponRepo, logger),
		gateway,
		publisher,
		logger,
	)
	importer := coupon.NewImporter(couponLoader, couponRepo, logger)

	// Initialize HTTP handlers
	sessionStore := cart.NewCookieStore(cfg.Auth.SessionSecret, cfg.Auth.SecureCookies, guestSessionMaxAge)
	stores := handler.NewCartStores(sessionStore, guestCartRepo, cartRepo, raceService, logger,
		cart.WithObserver(tracker),
		cart.WithMigrator(tracker),
		cart.WithBonusThreshold(cfg.Cart.BonusThreshold),
	)

	mux := router.New(router.Handlers{
		Races:    handler.NewRaceHandler(raceService, logger),
		Cart:     handler.NewCartHandler(stores, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, stores, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Coupons:  handler.NewCouponHandler(importer, logger),
	}, router.Auth{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

func newCouponLoader(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (coupon.Loader, error) {
	fileLoader := coupon.NewFileLoader(logger)
	if !cfg.Enabled {
		logger.Info().Msg("using local file system for coupon files (S3 disabled)")
		return fileLoader, nil
	}

	s3Loader, err := coupon.NewS3Loader(ctx, cfg.Bucket, cfg.Region, cfg.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader, nil
	}

	return coupon.NewFallbackLoader(s3Loader, fileLoader, logger), nil
}

func newPaymentGateway(cfg config.PaymentConfig, logger zerolog.Logger) (payment.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		return payment.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency, logger), nil
	case "dev":
		logger.Warn().Msg("using development payment gateway: payments are not verified")
		return payment.NewDevGateway(logger), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

func newPublisher(cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, error) {
	switch cfg.Provider {
	case "rabbitmq":
		channels, err := events.NewChannelPool(cfg.RabbitURL, cfg.Queue, cfg.PoolSize, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		return events.NewRabbitPublisher(channels, cfg.Timeout, logger), nil
	case "kafka":
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		return publisher, nil
	default:
		return events.NewNopPublisher(logger), nil
	}
}
