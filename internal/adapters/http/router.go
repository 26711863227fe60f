package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers the planner page and its REST, GraphQL, and WebSocket
// routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	useCommonMiddleware(app, 300)

	// ETag for conditional polling of the view
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler())
	app.Get("/v1/ready", ReadyHandler(deps.Checks))

	app.Get("/", PlannerPageHandler())

	v1 := app.Group("/v1")
	v1.Get("/config", ConfigHandler(deps))
	v1.Get("/view", timeout.NewWithContext(ViewHandler(deps), requestTimeout))
	v1.Get("/layers.geojson", timeout.NewWithContext(LayersGeoJSONHandler(deps), requestTimeout))
	v1.Get("/markers", timeout.NewWithContext(ListMarkersHandler(deps), requestTimeout))
	v1.Post("/markers", AddMarkerHandler(deps))
	v1.Delete("/markers", ClearMarkersHandler(deps))
	v1.Delete("/markers/:index", RemoveMarkerHandler(deps))
	v1.Get("/activities", timeout.NewWithContext(ListActivitiesHandler(deps), requestTimeout))

	// Recommendations run under the client's own timeout.
	v1.Get("/recommendations", RecommendationStatusHandler(deps))
	v1.Post("/recommendations", FindActivitiesHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

// useCommonMiddleware installs metrics, compression, request IDs, logging, rate
// limiting and security headers. max is the per-IP request budget per minute.
func useCommonMiddleware(app *fiber.App, max int) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	app.Use(limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})
}
