package handlers

import (
	"strings"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// AuthzHandler answers nginx auth_request subrequests. The proxy forwards the
// original Host so the decision is keyed on the subdomain being reached; the
// response carries only a status code.
type AuthzHandler struct {
	Authorize  *services.AuthorizeService
	BaseDomain string
}

func NewAuthzHandler(authorize *services.AuthorizeService, baseDomain string) *AuthzHandler {
	return &AuthzHandler{Authorize: authorize, BaseDomain: baseDomain}
}

func (h *AuthzHandler) Check(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	subdomain := subdomainOf(forwardedHost(c), h.BaseDomain)
	if subdomain == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	decision, err := h.Authorize.Authorize(c.UserContext(), session, subdomain)
	if err != nil {
		logger.Error("authorize_failed", map[string]interface{}{
			"subdomain": subdomain,
			"error":     err.Error(),
		})
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	switch decision {
	case services.Allow:
		return c.SendStatus(fiber.StatusOK)
	case services.DenyNoSite:
		return c.SendStatus(fiber.StatusNotFound)
	case services.DenyForbidden:
		return c.SendStatus(fiber.StatusForbidden)
	default:
		return c.SendStatus(fiber.StatusUnauthorized)
	}
}

func forwardedHost(c *fiber.Ctx) string {
	if host := strings.TrimSpace(c.Get("X-Forwarded-Host")); host != "" {
		return host
	}
	return c.Hostname()
}

// subdomainOf extracts the label directly left of the base domain:
// "blog.example.com" against "example.com" yields "blog", and deeper hosts
// like "a.blog.example.com" still resolve to "blog".
func subdomainOf(host, baseDomain string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}

	labels := strings.Split(strings.TrimSuffix(host, suffix), ".")
	return labels[len(labels)-1]
}
