package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saeid-a/ConsultBack/internal/config"
	"github.com/saeid-a/ConsultBack/internal/database"
	"github.com/saeid-a/ConsultBack/internal/logger"
	"github.com/saeid-a/ConsultBack/internal/middleware"
	"github.com/saeid-a/ConsultBack/internal/routes"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := logger.New("info", "")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.AppEnv)
	if !cfg.EnvFileLoaded {
		log.Info().Msg("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}
	pool, err := database.ConnectDB(ctx, cfg.DBUrl, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	var registry *prometheus.Registry
	if cfg.EnableMetrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	relay := routes.RegisterRoutes(app, cfg, pool, registry, log)

	// 4. Start Server
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().
		Int("connections", relay.ConnectionCount()).
		Int("rooms", relay.RoomCount()).
		Msg("shutting down")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
