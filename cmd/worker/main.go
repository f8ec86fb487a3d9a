package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/acme/crm-pro/internal/app"
	"github.com/acme/crm-pro/internal/telemetry"
	campaignworker "github.com/acme/crm-pro/internal/worker/campaign"
	deliveryworker "github.com/acme/crm-pro/internal/worker/delivery"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	cfg := container.Config
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name+"-worker", cfg.App.Version)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	campaigns, err := campaignworker.New(container)
	if err != nil {
		log.Fatalf("failed to build campaign worker: %v", err)
	}
	deliveries, err := deliveryworker.New(container)
	if err != nil {
		log.Fatalf("failed to build delivery worker: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return campaigns.Run(gctx) })
	g.Go(func() error { return deliveries.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
