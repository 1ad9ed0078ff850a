package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-intake/internal/api/dto"
	"github.com/spec-kit/helpdesk-intake/internal/auth"
	"github.com/spec-kit/helpdesk-intake/internal/channel"
	"github.com/spec-kit/helpdesk-intake/internal/service"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// AdminHandler manages tenant channel settings.
type AdminHandler struct {
	orgs     *service.OrganizationService
	validate *validator.Validate
}

// NewAdminHandler constructs handler.
func NewAdminHandler(orgs *service.OrganizationService, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{orgs: orgs, validate: validate}
}

// GetChannels handles GET /admin/organizations/:id/channels.
func (h *AdminHandler) GetChannels(c *fiber.Ctx) error {
	orgID := c.Params("id")
	if err := authorizeOrganization(c, orgID); err != nil {
		return err
	}

	org, err := h.orgs.GetChannels(c.UserContext(), orgID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChannelSettingsResponse(org)})
}

// UpdateChannels handles PUT /admin/organizations/:id/channels.
func (h *AdminHandler) UpdateChannels(c *fiber.Ctx) error {
	orgID := c.Params("id")
	if err := authorizeOrganization(c, orgID); err != nil {
		return err
	}

	var req dto.ChannelSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return channel.ValidationError("invalid channel settings", err)
	}

	org, err := h.orgs.UpdateChannels(c.UserContext(), orgID, req.ToUpdate())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewChannelSettingsResponse(org)})
}

func authorizeOrganization(c *fiber.Ctx, orgID string) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !principal.CanManage(orgID) {
		return apperrors.NewForbidden("organization outside token scope")
	}
	return nil
}
