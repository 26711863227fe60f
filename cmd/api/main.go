package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/cityplanner/internal/adapters/http"
	natsadapter "github.com/samirrijal/cityplanner/internal/adapters/nats"
	"github.com/samirrijal/cityplanner/internal/adapters/recommender"
	"github.com/samirrijal/cityplanner/internal/core/ports"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
	"github.com/samirrijal/cityplanner/internal/pkg/logging"
	"github.com/samirrijal/cityplanner/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("cityplanner-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	checks := map[string]http.Pinger{}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, marker events disabled", "error", err)
		} else {
			defer nc.Close()
			publisher = nc
			checks["nats"] = nc
		}
	}

	// Core
	store := usecases.NewMarkerStore(publisher)
	defer store.Close()
	transport := recommender.NewClient(cfg.Recommender, cfg.City.Name)
	opts := []usecases.ClientOption{usecases.WithTimeout(cfg.Recommender.Timeout())}
	if publisher != nil {
		opts = append(opts, usecases.WithPublisher(publisher))
	}
	client := usecases.NewRecommendationClient(store, transport, opts...)

	slog.Info("recommendation service configured",
		"endpoint", transport.Endpoint(),
		"payload_format", cfg.Recommender.PayloadFormat,
		"timeout", cfg.Recommender.Timeout().String(),
	)

	deps := &http.Dependencies{
		Store:       store,
		Client:      client,
		City:        cfg.City,
		Map:         cfg.Map,
		Styles:      cfg.Styles.Registry(),
		Recommender: cfg.Recommender,
		BaseCtx:     ctx,
		Checks:      checks,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // marker bodies are tiny
		AppName:      "City Planner",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("planner starting", "addr", addr, "city", cfg.City.Name)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Abandon running recommendation requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
