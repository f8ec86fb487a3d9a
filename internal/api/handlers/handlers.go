package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	authsvc "github.com/acme/crm-pro/internal/service/auth"
	campaignsvc "github.com/acme/crm-pro/internal/service/campaign"
	clientsvc "github.com/acme/crm-pro/internal/service/client"
	"github.com/acme/crm-pro/internal/service/suggest"
	teamsvc "github.com/acme/crm-pro/internal/service/team"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

// HealthChecker reports unhealthy backends by name.
type HealthChecker interface {
	Ping(ctx context.Context) map[string]string
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Auth        *authsvc.Service
	Campaigns   *campaignsvc.Service
	Clients     *clientsvc.Service
	Team        *teamsvc.Service
	Suggest     *suggest.Generator
	Credentials repository.CredentialRepository
	Health      HealthChecker
	Logger      *logger.Logger
	CountryCode string
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	auth        *authsvc.Service
	campaigns   *campaignsvc.Service
	clients     *clientsvc.Service
	team        *teamsvc.Service
	suggest     *suggest.Generator
	credentials repository.CredentialRepository
	health      HealthChecker
	logger      *logger.Logger
	countryCode string
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Deps) *HandlerSet {
	lg := deps.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	cc := deps.CountryCode
	if cc == "" {
		cc = phone.DefaultCountryCode
	}
	return &HandlerSet{
		auth:        deps.Auth,
		campaigns:   deps.Campaigns,
		clients:     deps.Clients,
		team:        deps.Team,
		suggest:     deps.Suggest,
		credentials: deps.Credentials,
		health:      deps.Health,
		logger:      lg,
		countryCode: cc,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api").Group("/v1")

	v1.Post("/auth/login", h.login)

	secured := v1.Group("", h.requireSession)
	secured.Post("/auth/logout", h.logout)

	clients := secured.Group("/clients")
	clients.Get("/", h.listClients)
	clients.Post("/", h.createClient)
	clients.Put("/:index", h.updateClient)
	clients.Delete("/:index", h.deleteClient)
	clients.Patch("/:index/status", h.updateClientStatus)

	secured.Get("/credentials", h.listCredentials)
	secured.Put("/credentials/:key", h.requireRole(domain.RoleAdmin), h.saveCredential)

	secured.Get("/team", h.getTeam)

	campaigns := secured.Group("/campaigns")
	campaigns.Post("/preview", h.previewCampaign)
	campaigns.Post("/", h.startCampaign)
	campaigns.Get("/", h.listCampaigns)
	campaigns.Get("/:id", h.getCampaign)
	campaigns.Post("/:id/cancel", h.cancelCampaign)
	campaigns.Get("/:id/deliveries", h.listDeliveries)

	secured.Post("/messages/suggest", h.suggestMessage)
	secured.Get("/phone/normalize", h.normalizePhone)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.WithContext(ctx.UserContext()).Error("request failed",
			zap.String("path", ctx.Path()),
			zap.Error(err),
		)
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) healthz(ctx *fiber.Ctx) error {
	if h.health == nil {
		return ctx.JSON(fiber.Map{"status": "ok"})
	}

	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := h.health.Ping(healthCtx)
	status := fiber.StatusOK
	label := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		label = "degraded"
	}
	return ctx.Status(status).JSON(fiber.Map{"status": label, "errors": errs})
}
