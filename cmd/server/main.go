package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/handlers"
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret)

	db, err := database.Connect(cfg.DB, cfg.Auth)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	totpStore := store.NewTotpStore(db)
	siteStore := store.NewSiteStore(db)

	sessionService := services.NewSessionService(sessionStore, cfg.Session.TTL)
	totpService := services.NewTotpService(totpStore, cfg.Auth.TotpIssuer)
	authorizeService := services.NewAuthorizeService(siteStore)

	authHandler := handlers.NewAuthHandler(userStore, sessionService, totpService, cfg.Auth.AdminRank)
	totpHandler := handlers.NewTotpHandler(totpService)
	usersHandler := handlers.NewUsersHandler(userStore)
	sitesHandler := handlers.NewSitesHandler(siteStore)
	authzHandler := handlers.NewAuthzHandler(authorizeService, cfg.Auth.BaseDomain)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionService, cfg.Session.CookieName, cfg.Auth.AdminRank)

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

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"address":     listenAddr,
		"base_domain": cfg.Auth.BaseDomain,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
