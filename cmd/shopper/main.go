package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/cart"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/config"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/storefront"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := storefront.NewClient(cfg.Shopper.APIURL, cfg.Shopper.Timeout)
	store := cart.NewFileStore(filepath.Join(cfg.Shopper.Home, "cart.json"))
	shell := storefront.NewShell(client, store, storefront.NewCheckout(client, store, logger), cfg.Pricing, cfg.Shopper.Home, os.Stdout)

	if err := shell.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, storefront.ErrUsage) {
			fmt.Fprintln(os.Stderr, storefront.Usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
