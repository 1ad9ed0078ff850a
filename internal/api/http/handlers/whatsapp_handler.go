package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-intake/internal/api/dto"
	"github.com/spec-kit/helpdesk-intake/internal/channel/whatsapp"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/service"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// IntakeProcessor runs a normalized message through the pipeline.
type IntakeProcessor interface {
	Process(ctx context.Context, msg domain.InboundMessage) (*service.IntakeResult, error)
}

// WhatsAppHandler receives the messaging provider's inbound webhook.
type WhatsAppHandler struct {
	intake   IntakeProcessor
	validate *validator.Validate
}

// NewWhatsAppHandler constructs handler.
func NewWhatsAppHandler(intake IntakeProcessor, validate *validator.Validate) *WhatsAppHandler {
	return &WhatsAppHandler{intake: intake, validate: validate}
}

// Receive handles POST /webhooks/whatsapp.
func (h *WhatsAppHandler) Receive(c *fiber.Ctx) error {
	var payload whatsapp.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid webhook payload", nil)
	}

	msg, err := whatsapp.Inbound(h.validate, payload, time.Now())
	if err != nil {
		return err
	}

	result, err := h.intake.Process(c.UserContext(), msg)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewIntakeResponse(result)})
}
