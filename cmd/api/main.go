package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/handlers"
	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/metrics"
	"alfredoptarigan/cv-screener/internal/repositories"
	"alfredoptarigan/cv-screener/internal/services"
)

func main() {
	cfg, envLoaded := config.Load()

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if !envLoaded {
		zl.Info("ℹ️ No .env file found, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		zl.Fatal("❌ Invalid configuration", zap.Error(err))
	}
	zl.Info("✅ Config loaded successfully", zap.String("env", cfg.Server.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := config.InitDatabase(cfg, zl)
	if err != nil {
		zl.Fatal("❌ Failed to initialize database", zap.Error(err))
	}
	defer func() { _ = config.CloseDatabase(db) }()

	docRepo := repositories.NewDocumentRepository(db)
	evalRepo := repositories.NewEvaluationRepository(db)
	resultRepo := repositories.NewResultRepository(db)
	queueRepo := repositories.NewQueueRepository(db, cfg.Queue.MaxAttempts, cfg.Queue.BackoffBase)
	zl.Info("✅ Repositories initialized successfully")

	storageService := services.NewStorageService(cfg.Storage)
	if err := storageService.EnsureUploadDir(); err != nil {
		zl.Fatal("❌ Failed to create upload directory", zap.Error(err))
	}
	pdfParser := services.NewPDFParserService()
	recorder := metrics.New()

	genaiClient, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		zl.Fatal("❌ Failed to initialize Gemini", zap.Error(err))
	}
	generator := services.NewGenerator(genaiClient.Models, cfg.Gemini.Model, zl)
	embedder := services.NewEmbeddingService(genaiClient.Models, cfg.Gemini.EmbeddingModel, cfg.Gemini.EmbeddingDimension)
	llmService := services.NewLLMService(generator, cfg.LLM, recorder, zl)
	zl.Info("✅ Gemini initialized successfully", zap.String("model", generator.Model()))

	vectorStore, err := services.NewQdrantService(cfg.Qdrant, zl)
	if err != nil {
		zl.Fatal("❌ Failed to initialize Qdrant", zap.Error(err))
	}
	defer func() { _ = vectorStore.Close() }()

	if err := vectorStore.InitCollection(ctx); err != nil {
		zl.Fatal("❌ Failed to initialize Qdrant collection", zap.Error(err))
	}
	ragService := services.NewRAGService(embedder, vectorStore, zl)
	zl.Info("✅ Qdrant initialized successfully")

	evaluatorService := services.NewEvaluatorService(
		evalRepo,
		docRepo,
		pdfParser,
		ragService,
		llmService,
		recorder,
		zl,
	)

	worker := services.NewWorker(
		queueRepo,
		evaluatorService,
		cfg.Worker,
		cfg.Queue,
		recorder,
		zl,
	)
	worker.Start(ctx)

	uploadHandler := handlers.NewUploadHandler(docRepo, storageService, zl)
	evaluateHandler := handlers.NewEvaluationHandler(evalRepo, docRepo, worker, zl)
	resultHandler := handlers.NewResultHandler(evalRepo, resultRepo, zl)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": func(ctx context.Context) error { return config.PingDatabase(ctx, db) },
		"qdrant":   vectorStore.HealthCheck,
	})

	app := fiber.New(fiber.Config{
		AppName:      "CV Screener API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 2,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.HandleHealth)
	api.Post("/upload", uploadHandler.HandleUpload)
	api.Post("/evaluate", evaluateHandler.HandleEvaluate)
	api.Get("/result/:id", resultHandler.HandleGetResult)

	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "CV Screener API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/upload",
				"POST /api/v1/evaluate",
				"GET /api/v1/result/:id",
				"GET /api/v1/health",
				"GET /metrics",
			},
		})
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-quit
		zl.Info("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("❌ Server forced to shutdown", zap.Error(err))
		}
		worker.Stop()
		cancel()
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zl.Info("🚀 Server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		zl.Fatal("❌ Failed to start server", zap.Error(err))
	}

	<-stopped
	zl.Info("✅ Shutdown complete")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
