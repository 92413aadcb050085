package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/config"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/messaging"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/notify"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/telemetry"
)

const consumerGroup = "wristix-notifier"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateNotifier(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.Settings{
		ServiceName:    "wristix-notifier",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error("failed to init tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Addr:     cfg.SMTP.Addr,
		Host:     cfg.SMTP.Host,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	notifier, err := notify.NewNotifier(mailer, logger)
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.OrderEventsTopic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	logger.Info("starting notifier", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderEventsTopic)

	if err := consumer.Consume(ctx, notifier.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
