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
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/database"
	"github.com/skydrive/backend/internal/handlers"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/internal/storage"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO, cfg.Server.OutboundTimeout)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	sessionService := services.NewSessionService(db, cfg.Session)
	sessionService.StartSweeper()
	defer sessionService.Stop()

	hierarchyService := services.NewHierarchyService(db, storageClient)
	shareLinkService := services.NewShareLinkService(db, hierarchyService, cfg.Server.BaseURL)
	mailer := services.NewSMTPMailer(cfg.SMTP, cfg.Server.OutboundTimeout)

	authHandler := handlers.NewAuthHandler(db, sessionService)
	driveHandler := handlers.NewDriveHandler(hierarchyService)
	filesHandler := handlers.NewFilesHandler(hierarchyService, storageClient, cfg.Upload)
	sharesHandler := handlers.NewSharesHandler(shareLinkService, storageClient, mailer)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)

	// Leave headroom over the per-file cap for multipart framing.
	app := fiber.New(fiber.Config{BodyLimit: int(cfg.Upload.MaxBytes) + 1024*1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(authMiddleware.LoadUser)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"app":  "skydrive",
			"user": middleware.GetCurrentUser(c),
		})
	})

	app.Post("/sign-up", authHandler.SignUp)
	app.Post("/log-in", authHandler.LogIn)
	app.Get("/log-out", authHandler.LogOut)

	drive := app.Group("/drive", authMiddleware.RequireAuth)
	drive.Get("/", driveHandler.Root)
	drive.Get("/driveFolder/all-folders", driveHandler.AllFolders)
	drive.Get("/driveFolder/all-files", driveHandler.AllFiles)
	drive.Post("/share", sharesHandler.Create)
	drive.Get("/file/:fileId", filesHandler.GetFile)
	drive.Get("/file/:fileId/download", filesHandler.DownloadFile)
	drive.Post("/:type/:id/rename", driveHandler.Rename)
	drive.Post("/:type/:id/delete", driveHandler.Delete)
	drive.Get("/:folderId", driveHandler.Folder)
	drive.Post("/:folderId/add-subfolder", driveHandler.AddSubfolder)
	drive.Post("/:folderId/upload", filesHandler.UploadFile)

	app.Get("/share/:token", sharesHandler.Resolve)
	app.Get("/share/:token/download", sharesHandler.Download)

	app.Use(func(c *fiber.Ctx) error {
		return utils.Error(c, fiber.StatusNotFound, "page not found")
	})

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
		sessionService.Stop()
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
