package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/learncircle/backend/internal/ai"
	"github.com/learncircle/backend/internal/config"
	"github.com/learncircle/backend/internal/database"
	"github.com/learncircle/backend/internal/handlers"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/internal/storage"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/learncircle/backend/pkg/utils"
)

// blobBackend is what the capture pipeline needs from either storage client.
type blobBackend interface {
	services.BlobStore
	EnsureBucket(ctx context.Context) error
}

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var blobs blobBackend
	switch cfg.Storage.Backend {
	case "s3":
		blobs, err = storage.NewS3Client(cfg.S3)
	default:
		blobs, err = storage.NewMinIOClient(cfg.MinIO)
	}
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring storage bucket: %v", err)
	}

	aiClient := ai.NewClient(cfg.OpenAI)
	mailer := services.NewMailer(cfg.SMTP)

	membershipService := services.NewMembershipService(db)
	schedulerService := services.NewSchedulerService(db)
	captureService := services.NewCaptureService(db, blobs, aiClient, aiClient)
	assistantService := services.NewAssistantService(db, aiClient)

	authHandler := handlers.NewAuthHandler(db)
	groupsHandler := handlers.NewGroupsHandler(db, membershipService, mailer)
	invitationsHandler := handlers.NewInvitationsHandler(membershipService)
	meetingsHandler := handlers.NewMeetingsHandler(db, schedulerService, mailer)
	recordingsHandler := handlers.NewRecordingsHandler(db, schedulerService, captureService, mailer)
	chatHandler := handlers.NewChatHandler(schedulerService, assistantService)
	notesHandler := handlers.NewNotesHandler(db, schedulerService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 30 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", middleware.HostOnly, groupsHandler.Create)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Get("/hosted", middleware.HostOnly, groupsHandler.Hosted)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Post("/:id/invitations", middleware.HostOnly, groupsHandler.Invite)
	groupRoutes.Get("/:id/meetings", meetingsHandler.ByGroup)

	invitationRoutes := api.Group("/invitations", authMiddleware.RequireAuth)
	invitationRoutes.Get("/", invitationsHandler.ListMine)
	invitationRoutes.Post("/:id/accept", invitationsHandler.Accept)
	invitationRoutes.Post("/:id/decline", invitationsHandler.Decline)

	meetingRoutes := api.Group("/meetings", authMiddleware.RequireAuth)
	meetingRoutes.Post("/", middleware.HostOnly, meetingsHandler.Create)
	meetingRoutes.Get("/", meetingsHandler.List)
	meetingRoutes.Get("/upcoming", meetingsHandler.Upcoming)
	meetingRoutes.Get("/reminders", middleware.HostOnly, meetingsHandler.Reminders)
	meetingRoutes.Post("/reminders/dispatch", middleware.HostOnly, meetingsHandler.DispatchReminders)
	meetingRoutes.Get("/:id", meetingsHandler.Get)
	meetingRoutes.Post("/:id/follow-up", middleware.HostOnly, meetingsHandler.CreateFollowUp)
	meetingRoutes.Get("/:id/follow-up", meetingsHandler.GetFollowUp)

	meetingRoutes.Post("/:id/audio", middleware.HostOnly, recordingsHandler.UploadAudio)
	meetingRoutes.Get("/:id/audio", recordingsHandler.DownloadAudio)
	meetingRoutes.Get("/:id/audio-url", recordingsHandler.AudioURL)
	meetingRoutes.Get("/:id/recording", recordingsHandler.Get)
	meetingRoutes.Put("/:id/recording", middleware.HostOnly, recordingsHandler.SaveTranscript)
	meetingRoutes.Post("/:id/minutes/generate", middleware.HostOnly, recordingsHandler.GenerateMinutes)
	meetingRoutes.Post("/:id/minutes", middleware.HostOnly, recordingsHandler.SaveMinutes)
	meetingRoutes.Post("/:id/minutes/email", middleware.HostOnly, recordingsHandler.EmailMinutes)

	meetingRoutes.Post("/:id/chat", chatHandler.Ask)
	meetingRoutes.Get("/:id/chat", chatHandler.History)
	meetingRoutes.Delete("/:id/chat", chatHandler.Clear)

	meetingRoutes.Put("/:id/note", notesHandler.Save)
	meetingRoutes.Get("/:id/note", notesHandler.GetMine)
	meetingRoutes.Get("/:id/notes", notesHandler.List)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":            cfg.Server.Port,
		"address":         listenAddr,
		"storage_backend": cfg.Storage.Backend,
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
