package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/api/handlers"
	"github.com/nicetoya86/ticket/internal/app"
	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/middleware/ratelimit"
	"github.com/nicetoya86/ticket/internal/middleware/security"
	"github.com/nicetoya86/ticket/internal/middleware/validation"
	"github.com/nicetoya86/ticket/pkg/config"
	appLogger "github.com/nicetoya86/ticket/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting inquiry analytics API server")
	metrics.Init()

	a, err := app.New(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer a.Close()

	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	server.Use(recover.New())
	server.Use(logger.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "Content-Disposition",
	}))
	server.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: security.ParseOrigins(cfg.Server.AllowedOrigins),
		HSTS:           cfg.Server.HSTS,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.AnalyzePerMinute,
		Window:            time.Minute,
		Logger:            appLogger.GetLogger().Named("ratelimit"),
	})
	defer limiter.Stop()

	deps := map[string]handlers.Pinger{"sqlite": a.Store}
	if a.Redis != nil {
		deps["redis"] = a.Redis
	}

	server.Get("/metrics", metrics.MetricsHandler())
	handlers.NewWebSocketHandler(a.Inquiries).Register(server)

	api := server.Group("/api/v1", validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger().Named("validation"),
	}))
	handlers.NewHealthHandler(deps).Register(api)
	handlers.NewInquiryHandler(a.Inquiries).Register(api, limiter.Middleware())
	handlers.NewAdminHandler(a.Store, a.Inquiries.Normalize, a.Inquiries).Register(api)
	handlers.NewJobsHandler(a.Ingestion, a.Zendesk).Register(api)
	handlers.NewCatalogHandler(a.Store, a.Inquiries.Normalize).Register(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
