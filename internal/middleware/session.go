package middleware

import (
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const currentSessionKey = "currentSession"

type SessionMiddleware struct {
	Sessions   *services.SessionService
	CookieName string
	AdminRank  string
}

func NewSessionMiddleware(sessions *services.SessionService, cookieName, adminRank string) *SessionMiddleware {
	return &SessionMiddleware{Sessions: sessions, CookieName: cookieName, AdminRank: adminRank}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3001,http://127.0.0.1:3001",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

// Load resolves the session cookie once per request and attaches the session
// when it is valid. Absent, unknown, expired and invalidated tokens all leave
// the request unauthenticated without distinguishing between them.
func (m *SessionMiddleware) Load(c *fiber.Ctx) error {
	secret := c.Cookies(m.CookieName)
	if secret == "" {
		return c.Next()
	}

	session, err := m.Sessions.Resolve(c.UserContext(), secret)
	if err != nil {
		logger.Error("session_resolve_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return c.Next()
	}
	if session == nil || !session.IsValid() {
		return c.Next()
	}

	c.Locals(currentSessionKey, session)
	return c.Next()
}

func (m *SessionMiddleware) RequireAuth(c *fiber.Ctx) error {
	if GetCurrentSession(c) == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}
	return c.Next()
}

func (m *SessionMiddleware) AdminOnly(c *fiber.Ctx) error {
	session := GetCurrentSession(c)
	if session == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}
	if session.User.Rank != m.AdminRank {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}
	return c.Next()
}

func GetCurrentSession(c *fiber.Ctx) *models.Session {
	value := c.Locals(currentSessionKey)
	if value == nil {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
