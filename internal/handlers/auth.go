package handlers

import (
	"errors"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Users     store.UserStore
	Sessions  *services.SessionService
	Totp      *services.TotpService
	AdminRank string
}

func NewAuthHandler(users store.UserStore, sessions *services.SessionService, totp *services.TotpService, adminRank string) *AuthHandler {
	return &AuthHandler{Users: users, Sessions: sessions, Totp: totp, AdminRank: adminRank}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}
	if !validUsername(req.Username) {
		return utils.Error(c, fiber.StatusBadRequest, "username must be between 4 and 15 characters")
	}
	if !validPassword(req.Password) {
		return utils.Error(c, fiber.StatusBadRequest, "password must be between 9 and 31 characters")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		logger.Error("password_hash_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	user := &models.User{
		Username:     req.Username,
		Rank:         "user",
		PasswordHash: hash,
	}
	if err := h.Users.Insert(c.UserContext(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.Error(c, fiber.StatusConflict, "that username is taken")
		}
		logger.Error("user_insert_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	})

	return h.issueSession(c, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Totp     string `json:"totp"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	user, err := h.Users.ByUsername(c.UserContext(), req.Username)
	if err != nil {
		logger.Error("user_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	// One message for unknown user and wrong password; no username probing.
	if user == nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid username or password")
	}

	cfg, err := h.Totp.Config(c.UserContext(), user.ID)
	if err != nil {
		logger.Error("totp_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	if cfg != nil && cfg.Enabled {
		if req.Totp == "" {
			token, err := utils.GenerateChallengeToken(user.ID, user.Username)
			if err != nil {
				logger.Error("challenge_token_failed", map[string]interface{}{"error": err.Error()})
				return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
			}
			return utils.Success(c, fiber.StatusOK, fiber.Map{
				"totpRequired": true,
				"totpToken":    token,
			})
		}

		ok, err := h.Totp.VerifyCode(c.UserContext(), cfg, req.Totp)
		if err != nil {
			logger.Error("totp_verify_failed", map[string]interface{}{"error": err.Error()})
			return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
		}
		if !ok {
			return utils.Error(c, fiber.StatusUnauthorized, "invalid code, try again")
		}
	}

	return h.issueSession(c, user)
}

type completeTotpRequest struct {
	TotpToken string `json:"totpToken"`
	Code      string `json:"code"`
}

// CompleteTotp finishes a login that was answered with totpRequired. The
// challenge token stands in for the already-verified password and is spent
// on success.
func (h *AuthHandler) CompleteTotp(c *fiber.Ctx) error {
	var req completeTotpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.TotpToken == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "totpToken and code are required")
	}

	claims, err := utils.ValidateChallengeToken(req.TotpToken)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired challenge token")
	}
	if !utils.IsJTIValid(claims.JTI) {
		return utils.Error(c, fiber.StatusUnauthorized, "challenge token already used")
	}

	user, err := h.Users.ByID(c.UserContext(), claims.UserID)
	if err != nil {
		logger.Error("user_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired challenge token")
	}

	cfg, err := h.Totp.Config(c.UserContext(), user.ID)
	if err != nil {
		logger.Error("totp_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	if cfg == nil || !cfg.Enabled {
		return utils.Error(c, fiber.StatusBadRequest, "totp is not enabled")
	}

	ok, err := h.Totp.VerifyCode(c.UserContext(), cfg, req.Code)
	if err != nil {
		logger.Error("totp_verify_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid code, try again")
	}

	utils.ConsumeJTI(claims.JTI)

	return h.issueSession(c, user)
}

func (h *AuthHandler) State(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Success(c, fiber.StatusOK, fiber.Map{"auth": false})
	}

	cfg, err := h.Totp.Config(c.UserContext(), session.UserID)
	if err != nil {
		logger.Error("totp_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"auth":    true,
		"isAdmin": session.User.Rank == h.AdminRank,
		"user": fiber.Map{
			"username": session.User.Username,
			"rank":     session.User.Rank,
		},
		"session": fiber.Map{
			"ip":      session.IP,
			"expires": session.ExpiresAt.Unix(),
		},
		"totp": fiber.Map{
			"enabled": cfg != nil && cfg.Enabled,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	if err := h.Sessions.Invalidate(c.UserContext(), session); err != nil {
		logger.Error("session_invalidate_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	logger.InfoWithUser(session.UserID.String(), "user_logout", nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword also kills sibling sessions from the same origin so a stolen
// token from that address dies with the old password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		return utils.Error(c, fiber.StatusBadRequest, "currentPassword and newPassword are required")
	}
	if !validPassword(req.NewPassword) {
		return utils.Error(c, fiber.StatusBadRequest, "password must be between 9 and 31 characters")
	}

	if !utils.CheckPassword(req.CurrentPassword, session.User.PasswordHash) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid password")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("password_hash_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	if err := h.Users.UpdatePassword(c.UserContext(), session.UserID, hash); err != nil {
		logger.Error("password_update_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	if ip := clientIP(c); ip != nil {
		if err := h.Sessions.InvalidateAllForUserAndIP(c.UserContext(), session.UserID, *ip); err != nil {
			logger.Error("session_bulk_invalidate_failed", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.InfoWithUser(session.UserID.String(), "password_changed", nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password changed"})
}

// issueSession mints a session and returns the boundary shape: the opaque
// secret plus its absolute expiry in epoch seconds. Cookie handling is the
// client's concern.
func (h *AuthHandler) issueSession(c *fiber.Ctx, user *models.User) error {
	session, err := h.Sessions.Create(c.UserContext(), user, clientIP(c))
	if err != nil {
		logger.Error("session_create_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"sessionSecret": session.Secret,
		"expires":       session.ExpiresAt.Unix(),
	})
}
