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
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/cityplanner/internal/adapters/http"
	natsadapter "github.com/samirrijal/cityplanner/internal/adapters/nats"
	"github.com/samirrijal/cityplanner/internal/adapters/postgres"
	"github.com/samirrijal/cityplanner/internal/adapters/valkey"
	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/ports"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
	"github.com/samirrijal/cityplanner/internal/pkg/logging"
	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
	"github.com/samirrijal/cityplanner/internal/pkg/telemetry"
)

// Reference recommendation service: answers the planner's outbound request with
// places stored in PostGIS.
func main() {
	cfg, err := config.Load("cityplanner-recommender")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	checks := map[string]http.Pinger{"postgres": db}

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, "cityplanner:")
	if err != nil {
		slog.Warn("valkey unavailable, place cache disabled", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		checks["valkey"] = vc
	}

	places := usecases.NewPlaceService(postgres.NewPlaceRepo(db), cache, usecases.PlaceSearch{
		RadiusMeters: cfg.Places.RadiusMeters,
		Limit:        cfg.Places.Limit,
		CacheTTL:     cfg.Places.CacheTTL,
	})

	// Warm the cache as soon as the planner's markers change.
	if cfg.NATS.Enabled && cache != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, cache warm-up disabled", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeMarkersChanged(ctx, "recommender-warmup", func(ctx context.Context, snap domain.MarkerSnapshot) error {
				return places.Warm(ctx, snap.Coordinates())
			})
			if err != nil {
				slog.Warn("subscribe markers changed", "error", err)
			}
		}
	}

	go reportPoolStats(ctx, db)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "City Planner Recommender",
	})
	app.Use(recover.New())

	http.SetupRecommenderRoutes(app, &http.RecommenderDependencies{
		Places: places,
		Path:   cfg.Recommender.Path,
		Checks: checks,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Places.Port)
		slog.Info("recommender starting", "addr", addr, "path", cfg.Recommender.Path)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	slog.Info("recommender stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
