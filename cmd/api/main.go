package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/acme/crm-pro/internal/api"
	"github.com/acme/crm-pro/internal/api/handlers"
	"github.com/acme/crm-pro/internal/app"
	"github.com/acme/crm-pro/internal/telemetry"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
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
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name+"-api", cfg.App.Version)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	services, err := container.Services()
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}
	repos, err := container.Repositories()
	if err != nil {
		log.Fatalf("failed to build repositories: %v", err)
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Auth:        services.Auth,
		Campaigns:   services.Campaign,
		Clients:     services.Clients,
		Team:        services.Team,
		Suggest:     services.Suggest,
		Credentials: repos.Store.Credentials(),
		Health:      container,
		Logger:      container.Logger,
		CountryCode: cfg.Sheets.DefaultCountryCode,
	})
	server := api.NewServer(cfg.HTTP, handlerSet)

	log.Printf("api listening on port %d", cfg.HTTP.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
