package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, no_markers, request_in_flight, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errRecommendation maps a refused recommendation request to its response. The
// message is the notice the planner shows.
func errRecommendation(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNoMarkers):
		return newError(c, fiber.StatusUnprocessableEntity, "no_markers", domain.NoticeFor(err))
	case errors.Is(err, domain.ErrRequestInFlight):
		return newError(c, fiber.StatusConflict, "request_in_flight", domain.NoticeFor(err))
	default:
		return errInternal(c, err.Error())
	}
}
