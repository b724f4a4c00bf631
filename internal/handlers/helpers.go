package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// clientIP prefers the proxy-set header so sessions record the real origin
// rather than the proxy's address.
func clientIP(c *fiber.Ctx) *string {
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return &ip
	}
	if ip := c.IP(); ip != "" {
		return &ip
	}
	return nil
}

func validUsername(username string) bool {
	return len(username) > 3 && len(username) < 16
}

func validPassword(password string) bool {
	return len(password) > 8 && len(password) < 32
}
