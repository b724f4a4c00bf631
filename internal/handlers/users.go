package handlers

import (
	"errors"

	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// UsersHandler covers admin-only account management.
type UsersHandler struct {
	Users store.UserStore
}

func NewUsersHandler(users store.UserStore) *UsersHandler {
	return &UsersHandler{Users: users}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.Users.All(c.UserContext())
	if err != nil {
		logger.Error("user_list_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	return utils.Success(c, fiber.StatusOK, users)
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Rank     *string `json:"rank"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Username == nil && req.Rank == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	user, err := h.Users.ByID(c.UserContext(), userID)
	if err != nil {
		logger.Error("user_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	if user == nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	username := user.Username
	if req.Username != nil {
		if !validUsername(*req.Username) {
			return utils.Error(c, fiber.StatusBadRequest, "username must be between 4 and 15 characters")
		}
		username = *req.Username
	}
	rank := user.Rank
	if req.Rank != nil {
		if *req.Rank == "" {
			return utils.Error(c, fiber.StatusBadRequest, "rank cannot be empty")
		}
		rank = *req.Rank
	}

	if err := h.Users.Update(c.UserContext(), userID, username, rank); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.Error(c, fiber.StatusConflict, "that username is taken")
		}
		if errors.Is(err, store.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		logger.Error("user_update_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	updated, err := h.Users.ByID(c.UserContext(), userID)
	if err != nil || updated == nil {
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

// Delete removes the account; the store cascades session invalidation and
// TOTP cleanup in the same transaction.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Users.Delete(c.UserContext(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		logger.Error("user_delete_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}
