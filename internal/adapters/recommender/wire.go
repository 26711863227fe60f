package recommender

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
)

// StatusSuccess is the only status value that carries places.
const StatusSuccess = "success"

// ErrEmptyPayload is returned when a request carries no points.
var ErrEmptyPayload = errors.New("payload has no points")

// pointsPayload is {"points": [[lon, lat], ...]}.
type pointsPayload struct {
	Points [][]float64 `json:"points"`
}

// coordinatesPayload is {"city": ..., "coordinates": [{"latitude", "longitude"}]}.
type coordinatesPayload struct {
	City        string              `json:"city,omitempty"`
	Coordinates []domain.Coordinate `json:"coordinates"`
}

// PlaceJSON is one recommended place on the wire.
type PlaceJSON struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// ResponseJSON is the service reply.
type ResponseJSON struct {
	Status            string      `json:"status"`
	Message           string      `json:"message,omitempty"`
	RecommendedPlaces []PlaceJSON `json:"recommended_places"`
}

// EncodeRequest builds the request body for the given payload format.
func EncodeRequest(format, city string, points []domain.Coordinate) ([]byte, error) {
	switch format {
	case config.PayloadPoints, "":
		p := pointsPayload{Points: make([][]float64, len(points))}
		for i, c := range points {
			p.Points[i] = []float64{c.Longitude, c.Latitude}
		}
		return json.Marshal(p)
	case config.PayloadCoordinates:
		return json.Marshal(coordinatesPayload{
			City:        city,
			Coordinates: append([]domain.Coordinate{}, points...),
		})
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

// DecodeRequest accepts either payload shape and returns the points in order.
// Every point must be a valid WGS 84 coordinate.
func DecodeRequest(body []byte) ([]domain.Coordinate, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}

	var (
		points []domain.Coordinate
		city   string
	)
	switch {
	case fields["points"] != nil:
		var p pointsPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("decode points: %w", err)
		}
		points = make([]domain.Coordinate, len(p.Points))
		for i, pair := range p.Points {
			if len(pair) != 2 {
				return nil, "", fmt.Errorf("point %d has %d values, want [lon, lat]", i, len(pair))
			}
			points[i] = domain.Coordinate{Longitude: pair[0], Latitude: pair[1]}
		}
	case fields["coordinates"] != nil:
		var p coordinatesPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("decode coordinates: %w", err)
		}
		points, city = p.Coordinates, p.City
	default:
		return nil, "", errors.New(`payload needs "points" or "coordinates"`)
	}

	if len(points) == 0 {
		return nil, "", ErrEmptyPayload
	}
	for i, p := range points {
		if !p.InRange() {
			return nil, "", fmt.Errorf("point %d (%v, %v) is out of range", i, p.Latitude, p.Longitude)
		}
	}
	return points, city, nil
}

// EncodeResponse builds a success reply for places.
func EncodeResponse(places []domain.Place) ([]byte, error) {
	out := ResponseJSON{Status: StatusSuccess, RecommendedPlaces: make([]PlaceJSON, 0, len(places))}
	for _, p := range places {
		out.RecommendedPlaces = append(out.RecommendedPlaces, PlaceJSON{
			Name:        p.Name,
			Type:        p.Category,
			Description: p.Description,
			Latitude:    p.Location.Latitude,
			Longitude:   p.Location.Longitude,
		})
	}
	return json.Marshal(out)
}

// rawResponse keeps each place undecoded so one bad entry cannot fail the rest.
type rawResponse struct {
	Status            string             `json:"status"`
	RecommendedPlaces *[]json.RawMessage `json:"recommended_places"`
}

type rawPlace struct {
	Name        *string  `json:"name"`
	Type        *string  `json:"type"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// DecodeResponse validates a reply. The reply is rejected unless status is
// success and recommended_places is a non-null array. Places without a name or a
// valid position are dropped and counted; type and description may be absent.
func DecodeResponse(body []byte) (*domain.Recommendations, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: status %q", domain.ErrServiceRejected, raw.Status)
	}
	if raw.RecommendedPlaces == nil {
		return nil, fmt.Errorf("%w: recommended_places missing", domain.ErrServiceRejected)
	}

	recs := &domain.Recommendations{Activities: make([]domain.ActivityMarker, 0, len(*raw.RecommendedPlaces))}
	for _, msg := range *raw.RecommendedPlaces {
		a, ok := decodePlace(msg)
		if !ok {
			recs.Dropped++
			continue
		}
		recs.Activities = append(recs.Activities, a)
	}
	return recs, nil
}

func decodePlace(msg json.RawMessage) (domain.ActivityMarker, bool) {
	var p rawPlace
	if err := json.Unmarshal(msg, &p); err != nil {
		return domain.ActivityMarker{}, false
	}
	if p.Name == nil || strings.TrimSpace(*p.Name) == "" || p.Latitude == nil || p.Longitude == nil {
		return domain.ActivityMarker{}, false
	}
	pos := domain.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude}
	if !pos.InRange() {
		return domain.ActivityMarker{}, false
	}

	a := domain.ActivityMarker{Name: strings.TrimSpace(*p.Name), Position: pos}
	if p.Type != nil {
		a.Category = *p.Type
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	return a, true
}
