package http

import (
	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/mapview"
)

// MarkerJSON is a user marker with its current index.
type MarkerJSON struct {
	Index      int     `json:"index"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	RemovePath string  `json:"remove_path"`
}

// ActivityJSON is an activity marker flattened for clients.
type ActivityJSON struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// OutcomeJSON is a finished recommendation request.
type OutcomeJSON struct {
	RequestID  string         `json:"request_id"`
	Kind       string         `json:"kind"`
	Activities []ActivityJSON `json:"activities"`
	Dropped    int            `json:"dropped"`
	Submitted  int            `json:"submitted"`
	Reason     string         `json:"reason,omitempty"`
	Notice     string         `json:"notice"`
	DurationMS int64          `json:"duration_ms"`
}

// StatusJSON is the recommendation client's state.
type StatusJSON struct {
	State       string       `json:"state"`
	Requesting  bool         `json:"requesting"`
	LastOutcome *OutcomeJSON `json:"last_outcome,omitempty"`
}

func newMarkerJSON(index int, pos domain.Coordinate) MarkerJSON {
	return MarkerJSON{
		Index:      index,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		RemovePath: mapview.RemovePath(index),
	}
}

func toMarkersJSON(users []domain.UserMarker) []MarkerJSON {
	out := make([]MarkerJSON, len(users))
	for i, u := range users {
		out[i] = newMarkerJSON(i, u.Position)
	}
	return out
}

func toActivitiesJSON(list []domain.ActivityMarker) []ActivityJSON {
	out := make([]ActivityJSON, len(list))
	for i, a := range list {
		out[i] = ActivityJSON{
			Name:        a.Name,
			Category:    a.Category,
			Description: a.Description,
			Latitude:    a.Position.Latitude,
			Longitude:   a.Position.Longitude,
		}
	}
	return out
}

func toOutcomeJSON(o domain.Outcome) OutcomeJSON {
	return OutcomeJSON{
		RequestID:  o.RequestID,
		Kind:       string(o.Kind),
		Activities: toActivitiesJSON(o.Activities),
		Dropped:    o.Dropped,
		Submitted:  o.Submitted,
		Reason:     o.Reason,
		Notice:     o.Notice,
		DurationMS: o.Duration.Milliseconds(),
	}
}

func toStatusJSON(s domain.ClientStatus) StatusJSON {
	out := StatusJSON{State: string(s.State), Requesting: s.Requesting()}
	if s.Last != nil {
		o := toOutcomeJSON(*s.Last)
		out.LastOutcome = &o
	}
	return out
}
