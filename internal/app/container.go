package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/infra/db"
	"github.com/acme/crm-pro/internal/infra/redis"
	"github.com/acme/crm-pro/internal/messaging"
	"github.com/acme/crm-pro/internal/messaging/mock"
	"github.com/acme/crm-pro/internal/messaging/whatsapp"
	"github.com/acme/crm-pro/internal/queue"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/internal/repository/appscript"
	"github.com/acme/crm-pro/internal/repository/memory"
	"github.com/acme/crm-pro/internal/scheduler"
	pgrepo "github.com/acme/crm-pro/internal/repository/postgres"
	scyllarepo "github.com/acme/crm-pro/internal/repository/scylla"
	authsvc "github.com/acme/crm-pro/internal/service/auth"
	campaignsvc "github.com/acme/crm-pro/internal/service/campaign"
	clientsvc "github.com/acme/crm-pro/internal/service/client"
	"github.com/acme/crm-pro/internal/service/concurrency"
	"github.com/acme/crm-pro/internal/service/progress"
	"github.com/acme/crm-pro/internal/service/suggest"
	teamsvc "github.com/acme/crm-pro/internal/service/team"
	"github.com/acme/crm-pro/internal/telemetry"
	"github.com/acme/crm-pro/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		err          error
		repositories *repositories
		services     *services
		publishers   *publishers
		metrics      *telemetry.Metrics
		progress     *progress.Store
	}
}

type repositories struct {
	Store      repository.Store
	Runs       repository.RunRepository
	Deliveries repository.DeliveryLog
}

type services struct {
	Campaign *campaignsvc.Service
	Auth     *authsvc.Service
	Clients  *clientsvc.Service
	Team     *teamsvc.Service
	Suggest  *suggest.Generator
}

type publishers struct {
	Campaign *queue.CampaignPublisher
	Delivery *queue.DeliveryPublisher
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}
	if cfg.Postgres.InitSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("bootstrap postgres schema: %w", err)
		}
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		scylla.Close()
		pg.Close()
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		redisClient.Close()
		scylla.Close()
		pg.Close()
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

// NewStore selects the sheet backend: the Apps Script endpoint when one is
// configured, mirrored into the demo dataset when fallback is on, or the
// demo dataset alone.
func NewStore(cfg *config.Config, lg *logger.Logger) (repository.Store, error) {
	mem, err := memory.NewSeeded(cfg.Sheets.DefaultCountryCode)
	if err != nil {
		return nil, fmt.Errorf("seed memory store: %w", err)
	}
	if !appscript.Configured(cfg.Sheets.AppsScriptURL) {
		lg.Info("sheets: apps script url not configured, using demo data")
		return mem, nil
	}

	httpClient := &http.Client{Timeout: cfg.Sheets.RequestTimeout}
	sheets := appscript.NewStore(appscript.NewClient(cfg.Sheets, httpClient, lg))
	if !cfg.Sheets.Fallback {
		return sheets, nil
	}
	return repository.WithFallback(sheets, mem, lg), nil
}

// NewSender selects the messaging integration.
func NewSender(cfg config.WhatsAppConfig) (messaging.Sender, error) {
	switch cfg.Provider {
	case "", "cloud":
		return whatsapp.NewClient(cfg, &http.Client{Timeout: cfg.RequestTimeout}), nil
	case "mock":
		return mock.NewSender(cfg), nil
	default:
		return nil, fmt.Errorf("unknown whatsapp provider %q", cfg.Provider)
	}
}

// CostPerMessage parses the configured estimate rate.
func CostPerMessage(cfg config.CampaignConfig) decimal.Decimal {
	rate, err := decimal.NewFromString(cfg.CostPerMessage)
	if err != nil || rate.IsNegative() {
		return campaignsvc.DefaultCostPerMessage
	}
	return rate
}

func (c *Container) initComponents() error {
	c.components.once.Do(func() {
		store, err := NewStore(c.Config, c.Logger)
		if err != nil {
			c.components.err = err
			return
		}
		sender, err := NewSender(c.Config.WhatsApp)
		if err != nil {
			c.components.err = err
			return
		}
		generator, err := suggest.NewGenerator()
		if err != nil {
			c.components.err = err
			return
		}

		metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

		repos := &repositories{
			Store:      store,
			Runs:       pgrepo.NewRunRepository(c.Postgres.DB()),
			Deliveries: scyllarepo.NewDeliveryLog(c.Scylla.Session()),
		}

		pubs := &publishers{
			Campaign: c.Kafka.CampaignPublisher(),
			Delivery: c.Kafka.DeliveryPublisher(),
		}

		dispatcher := campaignsvc.NewDispatcher(sender,
			campaignsvc.WithDelay(c.Config.Campaign.SendDelay),
			campaignsvc.WithLogger(c.Logger),
			campaignsvc.WithMetrics(metrics),
		)

		redisClient := c.Redis.Inner()
		tracker := progress.NewStore(redisClient, c.Config.Campaign.ProgressTTL)
		svcs := &services{
			Campaign: campaignsvc.NewService(campaignsvc.Deps{
				Store:      store,
				Runs:       repos.Runs,
				Deliveries: repos.Deliveries,
				Publisher:  pubs.Campaign,
				Events:     pubs.Delivery,
				Progress:   tracker,
				Limiter:    concurrency.NewLimiter(redisClient, 1, c.Config.Campaign.LockTTL),
				Dispatcher: dispatcher,
				Metrics:    metrics,
				Logger:     c.Logger,
			}, campaignsvc.Options{
				CostPerMessage: CostPerMessage(c.Config.Campaign),
				PreviewSize:    c.Config.Campaign.PreviewSize,
			}),
			Auth:    authsvc.NewService(store.Users(), redisClient, c.Config.Auth.SessionTTL, c.Logger),
			Clients: clientsvc.NewService(store.Clients(), c.Config.Sheets.DefaultCountryCode, c.Logger),
			Team:    teamsvc.NewService(store.Users()),
			Suggest: generator,
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.services = svcs
		c.components.metrics = metrics
		c.components.progress = tracker
	})
	return c.components.err
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() (*repositories, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.repositories, nil
}

// Services exposes initialized services.
func (c *Container) Services() (*services, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.services, nil
}

// Scheduler builds the stale run sweeper.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	runs := pgrepo.NewRunRepository(c.Postgres.DB())
	return scheduler.New(runs, c.components.progress, c.components.metrics, c.Logger, c.Config.Scheduler), nil
}

// Ping checks every backing store.
func (c *Container) Ping(ctx context.Context) map[string]string {
	errs := make(map[string]string)
	if err := c.Postgres.Ping(ctx); err != nil {
		errs["postgres"] = err.Error()
	}
	if err := c.Redis.Ping(ctx); err != nil {
		errs["redis"] = err.Error()
	}
	if err := c.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(ctx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}
	return errs
}

// Close releases all held resources.
func (c *Container) Close() error {
	var errs []error
	if p := c.components.publishers; p != nil {
		if err := p.Campaign.Close(); err != nil {
			errs = append(errs, fmt.Errorf("campaign publisher close: %w", err))
		}
		if err := p.Delivery.Close(); err != nil {
			errs = append(errs, fmt.Errorf("delivery publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if err := c.Kafka.EnsureTopics(ctx); err != nil {
		c.Logger.Error("kafka: ensure topics", zap.Strings("topics", c.Kafka.Topics()), zap.Error(err))
		return err
	}
	return nil
}
