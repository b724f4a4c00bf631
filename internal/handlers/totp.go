package handlers

import (
	"errors"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type TotpHandler struct {
	Totp *services.TotpService
}

func NewTotpHandler(totp *services.TotpService) *TotpHandler {
	return &TotpHandler{Totp: totp}
}

// Setup begins enrollment and returns the secret, provisioning URL and backup
// codes. Calling it again before confirmation returns the same material.
func (h *TotpHandler) Setup(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	result, err := h.Totp.Setup(c.UserContext(), &session.User)
	if err != nil {
		if errors.Is(err, services.ErrTotpAlreadyEnabled) {
			return utils.Error(c, fiber.StatusConflict, "totp is already enabled")
		}
		logger.Error("totp_setup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"secret": result.Secret,
		"url":    result.ProvisioningURL,
		"codes":  result.BackupCodes,
	})
}

type enableTotpRequest struct {
	Code string `json:"code"`
}

func (h *TotpHandler) Enable(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	var req enableTotpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code is required")
	}

	err := h.Totp.Confirm(c.UserContext(), &session.User, req.Code)
	switch {
	case errors.Is(err, services.ErrTotpNotConfigured):
		return utils.Error(c, fiber.StatusBadRequest, "totp setup not started")
	case errors.Is(err, services.ErrInvalidCode):
		return utils.Error(c, fiber.StatusBadRequest, "invalid code, try again")
	case err != nil:
		logger.Error("totp_confirm_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	logger.InfoWithUser(session.UserID.String(), "totp_enabled", nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "totp enabled"})
}

func (h *TotpHandler) Disable(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	err := h.Totp.Disable(c.UserContext(), &session.User)
	switch {
	case errors.Is(err, services.ErrTotpNotConfigured):
		return utils.Error(c, fiber.StatusBadRequest, "totp is not configured")
	case err != nil:
		logger.Error("totp_disable_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	logger.InfoWithUser(session.UserID.String(), "totp_disabled", nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "totp disabled"})
}
