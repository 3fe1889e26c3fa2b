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
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/framewatch/api/internal/classifier"
	"github.com/framewatch/api/internal/client"
	"github.com/framewatch/api/internal/config"
	"github.com/framewatch/api/internal/handler"
	"github.com/framewatch/api/internal/middleware"
	"github.com/framewatch/api/internal/service"
	"github.com/framewatch/api/internal/store"
	"github.com/framewatch/api/internal/video"
	"github.com/framewatch/api/internal/worker"
	ws "github.com/framewatch/api/internal/websocket"
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

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize object storage client
	s3Client, err := client.NewS3Client(&cfg.S3)
	if err != nil {
		log.Fatalf("Failed to initialize object storage client: %v", err)
	}

	// Initialize video tooling
	opener := video.NewOpener(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	frameExtractor := video.NewFrameExtractor(cfg.FFmpeg.FFmpegPath)

	// Initialize classifier strategies
	visionClient := client.NewVisionClient(&cfg.Classifier)
	visionStrategy := classifier.NewVision(visionClient, frameExtractor)
	registry, err := classifier.NewRegistry(&cfg.Classifier, visionStrategy)
	if err != nil {
		log.Fatalf("Failed to load classifiers: %v", err)
	}

	// Initialize stores
	jobStore := store.NewJobStore(redisClient)
	anomalyStore := store.NewAnomalyStore(redisClient)

	// Initialize services
	publisher := service.NewAsynqPublisher(asynqClient, cfg.Detection.Queue, cfg.Detection.MaxRetry)
	linkTTL := time.Duration(cfg.S3.LinkTTLMinutes) * time.Minute
	detectionService := service.NewDetectionService(
		jobStore,
		publisher,
		windowOpener{opener},
		s3Client,
		s3Client,
		registry,
		hub,
		cfg.S3.VideoBucket,
		linkTTL,
	)
	resultService := service.NewResultService(anomalyStore, s3Client, cfg.S3.FrameBucket, linkTTL)

	// Initialize handlers
	detectHandler := handler.NewDetectHandler(detectionService, validate)
	resultHandler := handler.NewResultHandler(resultService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    500 * 1024 * 1024, // 500MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
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
				"redis":  redisClient.Ping(c.Context()).Err() == nil,
				"vision": visionClient.HealthCheck(c.Context()) == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	// Detection routes
	detect := api.Group("/detect")
	detect.Post("/video", rateLimiter.DetectLimit(cfg.RateLimit.DetectPerHour), detectHandler.Video)
	detect.Post("/stream", rateLimiter.DetectLimit(cfg.RateLimit.DetectPerHour), detectHandler.Stream)
	detect.Post("/archive", rateLimiter.DetectLimit(cfg.RateLimit.DetectPerHour), detectHandler.Archive)
	detect.Get("/status/:jobId", detectHandler.Status)
	detect.Post("/cancel/:jobId", detectHandler.Cancel)
	detect.Get("/result/:jobId", resultHandler.Find)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, frameExtractor, s3Client, anomalyStore)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		detectionService.CancelAll()
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

// windowOpener adapts the concrete video opener to the service interface.
type windowOpener struct {
	opener *video.Opener
}

func (w windowOpener) Open(ctx context.Context, source string) (service.WindowStream, error) {
	return w.opener.Open(ctx, source)
}

func startWorkerServer(
	cfg *config.Config,
	frameExtractor *video.FrameExtractor,
	s3Client client.StorageClient,
	anomalyStore *store.AnomalyStore,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// single consumer keeps evidence writes for a job in event order
			Concurrency: 1,
			Queues: map[string]int{
				cfg.Detection.Queue: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	evidenceWorker := worker.NewEvidenceWorker(
		frameExtractor,
		s3Client,
		anomalyStore,
		cfg.S3.FrameBucket,
		cfg.Detection.SnapshotCount,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeAnomaly, evidenceWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
