package http

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoint. Set with -ldflags at build time.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler() fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": Version,
		})
	}
}

// ReadyHandler pings every configured backing service.
func ReadyHandler(checks map[string]Pinger) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(names))
		allOK := true
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				results[name] = "error: " + err.Error()
				allOK = false
				continue
			}
			results[name] = "ok"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
