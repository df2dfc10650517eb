package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/vidstash/api/internal/cache"
	"github.com/vidstash/api/internal/client"
	"github.com/vidstash/api/internal/config"
	"github.com/vidstash/api/internal/handler"
	"github.com/vidstash/api/internal/middleware"
	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/service"
	"github.com/vidstash/api/internal/store"
	"github.com/vidstash/api/internal/worker"
	ws "github.com/vidstash/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; fall back to in-memory state when absent
	ctx := context.Background()
	var blobStore store.Store
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, state will not survive restarts: %v", err)
		blobStore = store.NewMemoryStore()
	} else {
		blobStore = store.NewRedisStore(redisClient)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub (the notification bus)
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	fetcherClient := client.NewFetcherClient(&cfg.Fetcher)
	metadataClient := client.NewMetadataClient(&cfg.Metadata)

	// Initialize cache and services
	metadataCache := cache.NewMetadataCache(cfg.Cache.TTL())
	queueService := service.NewQueueService(blobStore, hub)
	historyService := service.NewHistoryService(blobStore, queueService, hub)
	settingsService := service.NewSettingsService(blobStore)

	// Recover persisted state before accepting any command: active jobs
	// are reset to pending before the execution loop may run
	if err := queueService.Load(ctx); err != nil {
		log.Fatalf("Failed to restore queue: %v", err)
	}
	if err := historyService.Load(ctx); err != nil {
		log.Fatalf("Failed to restore history: %v", err)
	}

	// Start the execution loop on its own goroutine
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	fetchWorker := worker.NewFetchWorker(queueService, historyService, fetcherClient, cfg.Queue.PassDelay())
	go fetchWorker.Run(workerCtx)

	// Initialize handlers
	queueHandler := handler.NewQueueHandler(queueService, validate)
	historyHandler := handler.NewHistoryHandler(historyService)
	metadataHandler := handler.NewMetadataHandler(metadataCache, metadataClient, cfg.Cache.AwaitTimeout(), validate)
	settingsHandler := handler.NewSettingsHandler(settingsService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"fetcher":  fetcherClient.IsConfigured(),
				"metadata": metadataClient.IsConfigured(),
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
			},
			"queue": fiber.Map{
				"length":       queueService.Length(),
				"isProcessing": queueService.IsProcessing(),
			},
		})
	})

	// API routes
	api := app.Group("/api")

	// Queue routes
	queue := api.Group("/queue")
	queue.Get("/", queueHandler.State)
	queue.Post("/jobs", rateLimiter.EnqueueLimit(cfg.RateLimit.EnqueuePerHour), queueHandler.Enqueue)
	queue.Delete("/jobs/:id", queueHandler.Remove)
	queue.Post("/clear-finished", queueHandler.ClearFinished)

	// Metadata routes
	metadata := api.Group("/metadata", rateLimiter.MetadataLimit(cfg.RateLimit.MetadataPerMin))
	metadata.Post("/prefetch", metadataHandler.Prefetch)
	metadata.Get("/:resourceId", metadataHandler.Get)
	metadata.Get("/:resourceId/await", metadataHandler.Await)

	// History routes
	history := api.Group("/history")
	history.Get("/", historyHandler.List)
	history.Post("/retry-all", historyHandler.RetryAll)
	history.Post("/:id/retry", historyHandler.Retry)
	history.Delete("/failed", historyHandler.ClearFailed)
	history.Delete("/:id", historyHandler.Remove)
	history.Delete("/", historyHandler.Clear)

	// Settings routes
	settings := api.Group("/settings")
	settings.Get("/", settingsHandler.Get)
	settings.Put("/", settingsHandler.Put)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		// New subscribers get the current state right away
		jobs, processing := queueService.Snapshot()
		hub.SendSnapshot(c, model.WSQueueChanged{
			Type:         model.WSEventQueueChanged,
			Jobs:         jobs,
			IsProcessing: processing,
		})
		entries, _, _ := historyService.Snapshot()
		hub.SendSnapshot(c, model.WSHistoryChanged{
			Type:    model.WSEventHistoryChanged,
			Entries: entries,
		})
		hub.HandleConnection(c)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopWorker()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
