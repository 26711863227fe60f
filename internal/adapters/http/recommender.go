package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/cityplanner/internal/adapters/recommender"
)

// SetupRecommenderRoutes registers the reference recommendation service. It
// answers the planner's outbound contract in either payload shape.
func SetupRecommenderRoutes(app *fiber.App, deps *RecommenderDependencies) {
	useCommonMiddleware(app, 600)

	app.Get("/v1/health", HealthHandler())
	app.Get("/v1/ready", ReadyHandler(deps.Checks))

	app.Post(deps.Path, RecommendPlacesHandler(deps))
}

// RecommendPlacesHandler answers a points or coordinates payload with the places
// near the submitted points.
func RecommendPlacesHandler(deps *RecommenderDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := LoggerFromCtx(c.UserContext())

		points, city, err := recommender.DecodeRequest(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(recommender.ResponseJSON{
				Status:  "error",
				Message: err.Error(),
			})
		}

		places, err := deps.Places.Recommend(c.UserContext(), points)
		if err != nil {
			log.Error("recommend places", "points", len(points), "error", err)
			status := fiber.StatusInternalServerError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(recommender.ResponseJSON{
				Status:  "error",
				Message: "place lookup failed",
			})
		}

		body, err := recommender.EncodeResponse(places)
		if err != nil {
			return errInternal(c, err.Error())
		}
		log.Info("recommended places", "points", len(points), "city", city, "places", len(places))

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(body)
	}
}
