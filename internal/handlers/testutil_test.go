package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const (
	testAdminRank  = "admin"
	testBaseDomain = "example.test"
	testCookieName = "authgate_session"
	testSessionTTL = time.Hour
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	sessions *services.SessionService
	totp     *services.TotpService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	totpStore := store.NewTotpStore(db)
	siteStore := store.NewSiteStore(db)

	sessionService := services.NewSessionService(sessionStore, testSessionTTL)
	totpService := services.NewTotpService(totpStore, "AuthGate")
	authorizeService := services.NewAuthorizeService(siteStore)

	authHandler := NewAuthHandler(userStore, sessionService, totpService, testAdminRank)
	totpHandler := NewTotpHandler(totpService)
	usersHandler := NewUsersHandler(userStore)
	sitesHandler := NewSitesHandler(siteStore)
	authzHandler := NewAuthzHandler(authorizeService, testBaseDomain)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionService, testCookieName, testAdminRank)

	app := fiber.New(fiber.Config{})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(sessionMiddleware.Load)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/nginxauth", authzHandler.Check)

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/totp", authHandler.CompleteTotp)
	authRoutes.Get("/state", authHandler.State)
	authRoutes.Post("/logout", sessionMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Put("/password", sessionMiddleware.RequireAuth, authHandler.ChangePassword)

	totpRoutes := api.Group("/totp", sessionMiddleware.RequireAuth)
	totpRoutes.Get("/setup", totpHandler.Setup)
	totpRoutes.Post("/enable", totpHandler.Enable)
	totpRoutes.Post("/disable", totpHandler.Disable)

	userRoutes := api.Group("/users", sessionMiddleware.RequireAuth, sessionMiddleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	siteRoutes := api.Group("/sites", sessionMiddleware.RequireAuth, sessionMiddleware.AdminOnly)
	siteRoutes.Get("/", sitesHandler.List)
	siteRoutes.Post("/", sitesHandler.Create)
	siteRoutes.Put("/:id", sitesHandler.Rename)
	siteRoutes.Delete("/:id", sitesHandler.Delete)
	siteRoutes.Post("/:id/ranks", sitesHandler.AddRank)
	siteRoutes.Delete("/:id/ranks/:rank", sitesHandler.RemoveRank)

	return &testEnv{app: app, db: db, sessions: sessionService, totp: totpService}
}

func createTestUser(t *testing.T, db *gorm.DB, username, password, rank string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Rank:         rank,
		PasswordHash: hash,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	return user
}

func createTestSession(t *testing.T, env *testEnv, user *models.User) *models.Session {
	t.Helper()

	ip := "203.0.113.7"
	session, err := env.sessions.Create(context.Background(), user, &ip)
	if err != nil {
		t.Fatalf("failed creating test session: %v", err)
	}
	return session
}

func sessionCookie(secret string) map[string]string {
	return map[string]string{"Cookie": testCookieName + "=" + secret}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
