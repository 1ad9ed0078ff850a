package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-intake/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-intake/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	WhatsApp       *handlers.WhatsAppHandler
	Email          *handlers.EmailHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Serve)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/whatsapp", cfg.WhatsApp.Receive)
	webhooks.Post("/email", cfg.Email.Receive)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleAdmin))
	admin.Get("/organizations/:id/channels", cfg.Admin.GetChannels)
	admin.Put("/organizations/:id/channels", cfg.Admin.UpdateChannels)
}
