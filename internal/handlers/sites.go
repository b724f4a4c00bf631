package handlers

import (
	"errors"
	"strings"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// SitesHandler covers admin-only management of the per-subdomain allow-sets.
type SitesHandler struct {
	Sites store.SiteStore
}

func NewSitesHandler(sites store.SiteStore) *SitesHandler {
	return &SitesHandler{Sites: sites}
}

func siteResponse(site *models.Site) fiber.Map {
	return fiber.Map{
		"id":        site.ID,
		"subdomain": site.Subdomain,
		"ranks":     site.RankList(),
	}
}

func (h *SitesHandler) List(c *fiber.Ctx) error {
	sites, err := h.Sites.All(c.UserContext())
	if err != nil {
		logger.Error("site_list_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	response := make([]fiber.Map, 0, len(sites))
	for i := range sites {
		response = append(response, siteResponse(&sites[i]))
	}
	return utils.Success(c, fiber.StatusOK, response)
}

type createSiteRequest struct {
	Subdomain string `json:"subdomain"`
}

func (h *SitesHandler) Create(c *fiber.Ctx) error {
	var req createSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if subdomain == "" {
		return utils.Error(c, fiber.StatusBadRequest, "subdomain is required")
	}

	site, err := h.Sites.Insert(c.UserContext(), subdomain)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.Error(c, fiber.StatusConflict, "site already exists")
		}
		logger.Error("site_insert_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, siteResponse(site))
}

type renameSiteRequest struct {
	Subdomain string `json:"subdomain"`
}

func (h *SitesHandler) Rename(c *fiber.Ctx) error {
	siteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid site id")
	}

	var req renameSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if subdomain == "" {
		return utils.Error(c, fiber.StatusBadRequest, "subdomain is required")
	}

	if err := h.Sites.RenameSubdomain(c.UserContext(), siteID, subdomain); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "site not found")
		}
		if errors.Is(err, store.ErrDuplicate) {
			return utils.Error(c, fiber.StatusConflict, "site already exists")
		}
		logger.Error("site_rename_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "site renamed"})
}

func (h *SitesHandler) Delete(c *fiber.Ctx) error {
	siteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid site id")
	}

	if err := h.Sites.Delete(c.UserContext(), siteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "site not found")
		}
		logger.Error("site_delete_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "site deleted"})
}

type rankRequest struct {
	Rank string `json:"rank"`
}

func (h *SitesHandler) AddRank(c *fiber.Ctx) error {
	siteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid site id")
	}

	var req rankRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Rank == "" {
		return utils.Error(c, fiber.StatusBadRequest, "rank is required")
	}

	site, err := h.Sites.ByID(c.UserContext(), siteID)
	if err != nil {
		logger.Error("site_lookup_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}
	if site == nil {
		return utils.Error(c, fiber.StatusNotFound, "site not found")
	}

	if err := h.Sites.AddRank(c.UserContext(), siteID, req.Rank); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.Error(c, fiber.StatusConflict, "rank already added")
		}
		logger.Error("site_rank_add_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "rank added"})
}

func (h *SitesHandler) RemoveRank(c *fiber.Ctx) error {
	siteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid site id")
	}

	rank := c.Params("rank")
	if rank == "" {
		return utils.Error(c, fiber.StatusBadRequest, "rank is required")
	}

	if err := h.Sites.RemoveRank(c.UserContext(), siteID, rank); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "rank not found")
		}
		logger.Error("site_rank_remove_failed", map[string]interface{}{"error": err.Error()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal error, try again")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "rank removed"})
}
