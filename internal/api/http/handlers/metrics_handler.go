package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk-intake/internal/observability"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	handler fiber.Handler
}

// NewMetricsHandler serves metrics from the given collectors.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{
		handler: adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})),
	}
}

// Serve handles GET /metrics.
func (h *MetricsHandler) Serve(c *fiber.Ctx) error {
	return h.handler(c)
}
