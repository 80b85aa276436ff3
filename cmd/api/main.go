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
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/config"
	"gar-rock/resume-crunch/internal/handlers"
	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("✅ Config loaded successfully", zap.String("env", cfg.Server.Env), zap.String("store", cfg.Store.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metadata store
	repo, closeStore, err := repositories.Open(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("❌ Failed to open resume store", zap.Error(err))
	}
	defer closeStore()
	zlog.Info("✅ Resume store initialized", zap.String("driver", cfg.Store.Driver))

	// Initialize extraction
	registry := services.NewExtractorRegistry(services.DefaultBackends(), cfg.Extractor.Disabled, zlog)
	extractor := services.NewTextExtractor(registry, zlog)
	zlog.Info("✅ Extractor registry initialized", zap.Strings("extensions", registry.SupportedExtensions()))

	storageService := services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize, registry.SupportedExtensions())
	if err := storageService.EnsureUploadDir(); err != nil {
		zlog.Fatal("❌ Failed to create upload directory", zap.Error(err))
	}

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(ctx, cfg.Gemini.APIKey, services.GeminiOptions{
		Model:       cfg.Gemini.Model,
		Timeout:     cfg.Gemini.Timeout,
		MaxAttempts: cfg.Gemini.MaxAttempts,
	}, zlog)
	if err != nil {
		zlog.Fatal("❌ Failed to initialize Gemini AI", zap.Error(err))
	}
	zlog.Info("✅ Gemini AI initialized successfully", zap.String("model", cfg.Gemini.Model))

	// Initialize evaluator
	evaluatorService := services.NewEvaluatorService(repo, storageService, extractor, geminiService, zlog)

	// Initialize worker
	worker := services.NewWorker(repo, evaluatorService, services.WorkerOptions{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		JobTimeout:  cfg.JobTimeout(),
		StaleAfter:  cfg.Worker.StaleAfter,
		SweepEvery:  cfg.Worker.SweepEvery,
	}, zlog)
	worker.Start(ctx)
	zlog.Info("✅ Worker started successfully", zap.Int("concurrency", cfg.Worker.Concurrency))

	evaluations := services.NewEvaluationService(repo, worker, cfg.Evaluation.MinJobDescriptionLength, zlog)

	// Initialize Handlers
	uploadHandler := handlers.NewUploadHandler(repo, storageService, extractor, zlog)
	evaluateHandler := handlers.NewEvaluationHandler(evaluations)
	resultHandler := handlers.NewResultHandler(repo)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Resume Crunch API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// room for the multipart envelope around the largest accepted file
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"time":       time.Now(),
			"store":      cfg.Store.Driver,
			"extensions": registry.SupportedExtensions(),
		})
	})

	handlers.RegisterRoutes(api, uploadHandler, evaluateHandler, resultHandler)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Resume Crunch API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/resumes",
				"GET /api/v1/resumes",
				"GET /api/v1/resumes/:filename",
				"DELETE /api/v1/resumes/:filename",
				"POST /api/v1/evaluate",
				"POST /api/v1/evaluate/batch",
				"GET /api/v1/stats",
				"GET /metrics",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-quit
		zlog.Info("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("❌ Server forced to shutdown", zap.Error(err))
		}
		// in-flight evaluations are marked failed before the store closes
		worker.Stop()
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zlog.Info("🚀 Server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		zlog.Fatal("❌ Failed to start server", zap.Error(err))
	}
	<-stopped
	zlog.Info("👋 Server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
