package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/serviciocomunal/backend/internal/config"
	"github.com/serviciocomunal/backend/internal/database"
	"github.com/serviciocomunal/backend/internal/handlers"
	"github.com/serviciocomunal/backend/internal/middleware"
	"github.com/serviciocomunal/backend/internal/services"
	"github.com/serviciocomunal/backend/pkg/logger"
	"github.com/serviciocomunal/backend/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	notificationService := services.NewNotificationService(db)
	groupService := services.NewGroupService(db, notificationService)
	requestService := services.NewRequestService(db, groupService, notificationService)

	authHandler := handlers.NewAuthHandler(db)
	usersHandler := handlers.NewUsersHandler(db)
	groupsHandler := handlers.NewGroupsHandler(db, groupService)
	requestsHandler := handlers.NewRequestsHandler(db, requestService)
	notificationsHandler := handlers.NewNotificationsHandler(db, notificationService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth)
	userRoutes.Get("/students", middleware.StaffOnly, usersHandler.ListStudents)
	userRoutes.Post("/", middleware.AdminOnly, usersHandler.Create)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", middleware.StaffOnly, groupsHandler.Create)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Delete("/:id", middleware.StaffOnly, groupsHandler.Delete)
	groupRoutes.Post("/:id/members", groupsHandler.AddMember)
	groupRoutes.Delete("/:id/members/:userId", groupsHandler.RemoveMember)
	groupRoutes.Put("/:id/leader", groupsHandler.ChangeLeader)
	groupRoutes.Post("/:id/tutors", middleware.StaffOnly, groupsHandler.AssignTutor)
	groupRoutes.Delete("/:id/tutors/:userId", middleware.StaffOnly, groupsHandler.RemoveTutor)
	groupRoutes.Get("/:id/submissions", groupsHandler.ListSubmissions)

	requestRoutes := api.Group("/requests", authMiddleware.RequireAuth)
	requestRoutes.Post("/", requestsHandler.Create)
	requestRoutes.Get("/", requestsHandler.List)
	requestRoutes.Post("/:id/respond", requestsHandler.Respond)
	requestRoutes.Delete("/:id", requestsHandler.Cancel)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
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
