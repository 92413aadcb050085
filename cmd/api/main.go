package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/api"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/auth"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/catalog"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/config"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/messaging"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/orders"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/payment"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/stats"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/telemetry"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/upload"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/users"
)

const (
	serviceName    = "wristix-api"
	serviceVersion = "1.0.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	settings := telemetry.Settings{ServiceName: serviceName, ServiceVersion: serviceVersion, OTLPEndpoint: cfg.OTLPEndpoint}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, settings)
	if err != nil {
		logger.Error("failed to init tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(settings)
	if err != nil {
		logger.Error("failed to init meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	userRepo := users.NewUserRepository(db)
	productRepo := catalog.NewProductRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	var orderOpts []orders.Option
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		orderOpts = append(orderOpts, orders.WithPublisher(producer))
	}

	var stripe *payment.StripeClient
	if cfg.Stripe.SecretKey != "" {
		stripe = payment.NewStripeClient(payment.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			APIURL:    cfg.Stripe.APIURL,
			Currency:  cfg.Stripe.Currency,
			Timeout:   cfg.Stripe.Timeout,
		})
		orderOpts = append(orderOpts, orders.WithVerifier(stripe))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payment endpoints disabled and receipts unverified")
	}

	orderService, err := orders.NewService(orderRepo, productRepo, cfg.Pricing, logger, orderOpts...)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	var paymentHandler *payment.Handler
	if stripe != nil {
		var webhooks *payment.WebhookVerifier
		if cfg.Stripe.WebhookSecret != "" {
			webhooks = payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
		}
		paymentHandler, err = payment.NewHandler(stripe, cfg.Stripe.PublishableKey, webhooks, orderService, logger)
		if err != nil {
			logger.Error("failed to create payment handler", "error", err)
			os.Exit(1)
		}
	}

	var images upload.ImageStore = upload.DataURIStore{}
	if cfg.S3Bucket != "" {
		s3Store, err := upload.NewS3Store(ctx, cfg.S3Bucket)
		if err != nil {
			logger.Error("failed to configure s3", "error", err)
			os.Exit(1)
		}
		images = s3Store
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	router := api.NewRouter(api.Deps{
		Logger:      logger,
		Gate:        auth.NewGate(tokens, userRepo, httpjson.NewResponder(logger)),
		Auth:        auth.NewHandler(userRepo, tokens, cfg.CookieSecure, logger),
		Users:       users.NewHandler(userRepo, logger),
		Catalog:     catalog.NewHandler(productRepo, logger),
		Orders:      orders.NewHandler(orderService, logger),
		Payment:     paymentHandler,
		Upload:      upload.NewHandler(images, logger),
		Stats:       stats.NewHandler(userRepo, productRepo, orderRepo, logger),
		Metrics:     metricsHandler,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
