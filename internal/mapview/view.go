// Package mapview turns marker store state into the layers the planner map draws.
package mapview

import (
	"fmt"
	"strconv"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// Item is one marker on a layer.
type Item struct {
	Layer       domain.MarkerClass `json:"layer"`
	Index       int                `json:"index"`
	Position    domain.Coordinate  `json:"position"`
	Title       string             `json:"title"`
	Category    string             `json:"category,omitempty"`
	Description string             `json:"description,omitempty"`
	Popup       []string           `json:"popup"`
	RemovePath  string             `json:"remove_path,omitempty"`
}

// Layer is a set of markers sharing one style.
type Layer struct {
	Class domain.MarkerClass `json:"class"`
	Style domain.MarkerStyle `json:"style"`
	Items []Item             `json:"items"`
}

// View is everything the map renders for one store revision.
type View struct {
	Revision    uint64             `json:"revision"`
	City        string             `json:"city"`
	Layers      []Layer            `json:"layers"`
	Bounds      *domain.Bounds     `json:"bounds,omitempty"`
	State       domain.ClientState `json:"state"`
	Requesting  bool               `json:"requesting"`
	CanFind     bool               `json:"can_find"`
	Selected    int                `json:"selected"`
	Activities  int                `json:"activities"`
	LastOutcome *domain.Outcome    `json:"last_outcome,omitempty"`
}

// RemovePath is the endpoint that removes the user marker at index.
func RemovePath(index int) string {
	return "/v1/markers/" + strconv.Itoa(index)
}

// Build lays out the base marker, the user markers and the activity markers as
// three disjoint layers in draw order. User items carry their current index.
func Build(snap domain.MarkerSnapshot, base domain.BaseMarker, styles domain.StyleRegistry, status domain.ClientStatus) View {
	baseLayer := Layer{Class: domain.ClassBase, Style: styles.Style(domain.ClassBase)}
	baseLayer.Items = []Item{{
		Layer:    domain.ClassBase,
		Position: base.Position,
		Title:    base.Label,
		Popup:    []string{"Base:", base.Label},
	}}

	userLayer := Layer{Class: domain.ClassUser, Style: styles.Style(domain.ClassUser), Items: make([]Item, 0, len(snap.Users))}
	for i, m := range snap.Users {
		userLayer.Items = append(userLayer.Items, Item{
			Layer:    domain.ClassUser,
			Index:    i,
			Position: m.Position,
			Title:    fmt.Sprintf("Marker %d", i+1),
			Popup: []string{
				"Coordinates:",
				"Latitude: " + FormatDegrees(m.Position.Latitude, 6),
				"Longitude: " + FormatDegrees(m.Position.Longitude, 6),
			},
			RemovePath: RemovePath(i),
		})
	}

	activityLayer := Layer{Class: domain.ClassActivity, Style: styles.Style(domain.ClassActivity), Items: make([]Item, 0, len(snap.Activities))}
	for i, a := range snap.Activities {
		activityLayer.Items = append(activityLayer.Items, Item{
			Layer:       domain.ClassActivity,
			Index:       i,
			Position:    a.Position,
			Title:       a.Name,
			Category:    a.Category,
			Description: a.Description,
			Popup:       activityPopup(a),
		})
	}

	v := View{
		Revision:   snap.Revision,
		City:       base.Label,
		Layers:     []Layer{baseLayer, userLayer, activityLayer},
		State:      status.State,
		Requesting: status.Requesting(),
		CanFind:    !status.Requesting() && len(snap.Users) > 0,
		Selected:   len(snap.Users),
		Activities: len(snap.Activities),
	}
	if v.State == "" {
		v.State = domain.StateIdle
	}
	if status.Last != nil {
		last := *status.Last
		v.LastOutcome = &last
	}

	coords := make([]domain.Coordinate, 0, 1+len(snap.Users)+len(snap.Activities))
	for _, l := range v.Layers {
		for _, it := range l.Items {
			coords = append(coords, it.Position)
		}
	}
	if b, ok := domain.BoundsOf(coords); ok {
		v.Bounds = &b
	}
	return v
}

// Layer returns the layer for class, or nil.
func (v View) Layer(class domain.MarkerClass) *Layer {
	for i := range v.Layers {
		if v.Layers[i].Class == class {
			return &v.Layers[i]
		}
	}
	return nil
}

// FormatDegrees formats a coordinate component with a fixed number of decimals.
func FormatDegrees(deg float64, decimals int) string {
	return strconv.FormatFloat(deg, 'f', decimals, 64)
}

func activityPopup(a domain.ActivityMarker) []string {
	lines := []string{a.Name}
	if a.Category != "" {
		lines = append(lines, a.Category)
	}
	if a.Description != "" {
		lines = append(lines, a.Description)
	}
	return append(lines, FormatDegrees(a.Position.Latitude, 4)+", "+FormatDegrees(a.Position.Longitude, 4))
}
