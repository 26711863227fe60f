package http

import (
	_ "embed"
	"encoding/json"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/mapview"
)

//go:embed web/planner.html
var plannerPage []byte

// PlannerPageHandler serves the map page.
func PlannerPageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(plannerPage)
	}
}

// ConfigResponse is what the page needs before its first render.
type ConfigResponse struct {
	City        string               `json:"city"`
	BaseMarker  domain.BaseMarker    `json:"base_marker"`
	Zoom        int                  `json:"zoom"`
	TileURL     string               `json:"tile_url"`
	Attribution string               `json:"attribution"`
	Styles      domain.StyleRegistry `json:"styles"`
	Recommender RecommenderInfo      `json:"recommender"`
}

// RecommenderInfo describes the configured recommendation service.
type RecommenderInfo struct {
	Endpoint      string `json:"endpoint"`
	PayloadFormat string `json:"payload_format"`
	TimeoutMS     int    `json:"timeout_ms"`
}

// ConfigHandler returns the city, map and style configuration.
func ConfigHandler(deps *Dependencies) fiber.Handler {
	styles := make(domain.StyleRegistry, len(domain.MarkerClasses))
	for _, class := range domain.MarkerClasses {
		styles[class] = deps.Styles.Style(class)
	}
	resp := ConfigResponse{
		City:        deps.City.Name,
		BaseMarker:  deps.City.BaseMarker(),
		Zoom:        deps.Map.Zoom,
		TileURL:     deps.Map.TileURL,
		Attribution: deps.Map.Attribution,
		Styles:      styles,
		Recommender: RecommenderInfo{
			Endpoint:      deps.Recommender.Endpoint(),
			PayloadFormat: deps.Recommender.PayloadFormat,
			TimeoutMS:     deps.Recommender.TimeoutMS,
		},
	}

	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(resp)
	}
}

// ViewHandler returns the three map layers and the client state.
func ViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.View())
	}
}

// LayersGeoJSONHandler returns the map layers as a GeoJSON FeatureCollection.
func LayersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := json.Marshal(mapview.FeatureCollection(deps.View()))
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// MarkersResponse lists the user markers.
type MarkersResponse struct {
	Markers []MarkerJSON `json:"markers"`
	Count   int          `json:"count"`
}

// ListMarkersHandler returns the user markers in list order.
func ListMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		markers := toMarkersJSON(deps.Store.UserMarkers())
		return c.JSON(MarkersResponse{Markers: markers, Count: len(markers)})
	}
}

type addMarkerRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// AddMarkerHandler appends a user marker.
func AddMarkerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req addMarkerRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "body must be JSON {latitude, longitude}")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}
		pos := domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if !validMarkerPosition(pos) {
			return errBadRequest(c, "latitude must be between -90 and 90")
		}

		idx := deps.Store.AddUserMarker(pos)
		LoggerFromCtx(c.UserContext()).Debug("marker added", "index", idx,
			"latitude", pos.Latitude, "longitude", pos.Longitude)

		return c.Status(fiber.StatusCreated).JSON(newMarkerJSON(idx, pos))
	}
}

// validMarkerPosition rejects non-finite values and impossible latitudes.
// Longitude is left unwrapped as the map reports it.
func validMarkerPosition(pos domain.Coordinate) bool {
	return pos.Finite() && math.Abs(pos.Latitude) <= 90
}

// RemoveMarkerHandler removes the user marker at :index.
func RemoveMarkerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := c.ParamsInt("index")
		if err != nil {
			return errBadRequest(c, "index must be an integer")
		}
		if !deps.Store.RemoveUserMarker(idx) {
			return errNotFound(c, "no marker at that index")
		}
		markers := toMarkersJSON(deps.Store.UserMarkers())
		return c.JSON(MarkersResponse{Markers: markers, Count: len(markers)})
	}
}

// ClearMarkersHandler removes every user marker. Activities are kept.
func ClearMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Store.ClearUserMarkers()
		return c.JSON(MarkersResponse{Markers: []MarkerJSON{}, Count: 0})
	}
}

// ActivitiesResponse lists the activity markers.
type ActivitiesResponse struct {
	Activities []ActivityJSON `json:"activities"`
	Count      int            `json:"count"`
}

// ListActivitiesHandler returns the activity markers.
func ListActivitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acts := toActivitiesJSON(deps.Store.ActivityMarkers())
		return c.JSON(ActivitiesResponse{Activities: acts, Count: len(acts)})
	}
}

// RecommendationStatusHandler returns the client state and last outcome.
func RecommendationStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(toStatusJSON(deps.Client.Status()))
	}
}

// TaskResponse acknowledges an asynchronous recommendation request.
type TaskResponse struct {
	RequestID string `json:"request_id"`
	Submitted int    `json:"submitted"`
	State     string `json:"state"`
}

// OutcomeResponse wraps a finished recommendation request.
type OutcomeResponse struct {
	Outcome OutcomeJSON `json:"outcome"`
}

// FindActivitiesHandler sends the user markers to the recommendation service.
// With ?async=true it answers 202 as soon as the request is started and the
// outcome arrives through /ws or GET /v1/recommendations.
func FindActivitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		task, err := deps.Client.Start(deps.baseCtx())
		if err != nil {
			return errRecommendation(c, err)
		}

		if c.QueryBool("async", false) {
			return c.Status(fiber.StatusAccepted).JSON(TaskResponse{
				RequestID: task.ID,
				Submitted: task.Submitted,
				State:     string(domain.StateRequesting),
			})
		}

		return c.JSON(OutcomeResponse{Outcome: toOutcomeJSON(task.Outcome())})
	}
}
