package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/checkout/checkout_api"
	checkout_db "ms-checkout/internal/checkout/db"
	checkout_redis "ms-checkout/internal/checkout/redis"
	"ms-checkout/internal/config"
	"ms-checkout/internal/coupon"
	"ms-checkout/internal/coupon/coupon_api"
	coupon_db "ms-checkout/internal/coupon/db"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/notification"
	"ms-checkout/internal/participant"
	participant_db "ms-checkout/internal/participant/db"
	"ms-checkout/internal/participant/participant_api"
	"ms-checkout/internal/participant/qr"
	"ms-checkout/internal/payment/mercadopago"
	"ms-checkout/internal/payment/stripe"
	"ms-checkout/internal/sse"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := cfg.Database.ConnectRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		_ = sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// the approval guard fails open, so a missing Redis degrades instead of stopping the service
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis connection error, approval guard will fail open: %v", err))
	} else {
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	}
	return bunDB, redisClient
}

func newGateway(cfg config.PaymentConfig, log *logger.Logger) (checkout.PaymentGateway, error) {
	switch cfg.Provider {
	case config.ProviderStripe:
		gw, err := stripe.NewGateway(cfg.StripeSecretKey, cfg.Currency, log)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case config.ProviderMercadoPago:
		gw, err := mercadopago.NewGateway(cfg.MPAccessToken, cfg.Environment == config.EnvironmentSandbox, cfg.Currency, log)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Checkout Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	ctx := context.Background()

	// --- Storage ---
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		_ = runner.Close()
	}

	checkoutStore := checkout_db.New(bunDB, log)
	participantStore := participant_db.New(bunDB, log)
	couponStore := coupon_db.New(bunDB, log)

	// --- Collaborators ---
	gateway, err := newGateway(cfg.Payment, log)
	if err != nil {
		log.Fatal("PAYMENT", fmt.Sprintf("Payment gateway unavailable: %v", err))
	}
	if cfg.Payment.WebhookSecret() == "" {
		log.Warn("CONFIG", "Mercado Pago webhook secret not set, notifications will be refused")
	}

	codes := qr.NewGenerator(cfg.QR.Secret)
	emitter := sse.NewCheckoutEventEmitter()
	pricing := checkout.NewPriceTable(cfg.Pricing)

	deps := checkout.Deps{
		Checkouts:    checkoutStore,
		Participants: participantStore,
		Coupons:      couponStore,
		Gateway:      gateway,
		Mailer:       notification.NewSMTPMailer(cfg.Email, log).WithQRRenderer(codes),
		Tokens:       codes,
		Guard:        checkout_redis.NewGuard(redisClient, cfg.Redis.ApprovalTTL, log),
		Notifier:     emitter,
		StripeEvents: stripe.NewEventParser(cfg.Payment.StripeWebhookSecret),
		Verifier:     checkout.NewSignatureVerifier(cfg.Payment.WebhookSecret()),
		Pricing:      pricing,
		URLs: checkout.RedirectURLs{
			Success:      cfg.Payment.SuccessURL,
			Failure:      cfg.Payment.FailureURL,
			Pending:      cfg.Payment.PendingURL,
			Notification: cfg.Payment.NotificationURL,
		},
		Topics: cfg.Kafka.Topics,
		Lookup: checkout.LookupPolicy{
			Attempts: cfg.Webhook.LookupAttempts,
			Delay:    cfg.Webhook.LookupDelay,
		},
		Logger: log,
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		deps.Events = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, checkout events will not be published")
	}

	checkoutService := checkout.NewCheckoutService(deps)
	couponService := coupon.NewService(couponStore, pricing, log)
	participantService := participant.NewParticipantService(participantStore, checkoutStore, codes, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	checkout_api.NewHandler(checkoutService, emitter, log).RegisterRoutes(r)
	coupon_api.NewHandler(couponService, log).RegisterRoutes(r)
	participant_api.NewHandler(participantService, log).RegisterRoutes(r)
	log.Info("ROUTER", "Checkout, coupon and participant routes registered")

	// no WriteTimeout: the status stream is long lived
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Checkout Service running on %s (provider=%s)", cfg.Server.Port, cfg.Payment.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Checkout Service shutdown complete")
	}
}
