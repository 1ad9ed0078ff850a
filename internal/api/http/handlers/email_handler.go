package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-intake/internal/api/dto"
	"github.com/spec-kit/helpdesk-intake/internal/channel/email"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

const intakeTokenHeader = "X-Intake-Token"

// EmailHandler receives raw messages forwarded by the inbound mail relay.
type EmailHandler struct {
	intake   IntakeProcessor
	validate *validator.Validate
}

// NewEmailHandler constructs handler.
func NewEmailHandler(intake IntakeProcessor, validate *validator.Validate) *EmailHandler {
	return &EmailHandler{intake: intake, validate: validate}
}

// Receive handles POST /webhooks/email.
func (h *EmailHandler) Receive(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)
	if len(raw) == 0 {
		return apperrors.NewValidationError("empty email message", nil)
	}

	credential := strings.TrimSpace(c.Get(intakeTokenHeader))
	if credential == "" {
		credential = strings.TrimSpace(c.Query("token"))
	}
	if credential == "" {
		return apperrors.NewValidationError("missing intake token", map[string]any{"fields": "token"})
	}

	msg, err := email.Inbound(h.validate, raw, credential, time.Now())
	if err != nil {
		return err
	}

	result, err := h.intake.Process(c.UserContext(), msg)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewIntakeResponse(result)})
}
