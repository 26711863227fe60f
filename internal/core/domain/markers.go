package domain

// UserMarker is a point placed by the user. Its identity is its position in the
// store's list; there is no other id.
type UserMarker struct {
	Position Coordinate `json:"position"`
}

// ActivityMarker is a point of interest returned by the recommendation service.
type ActivityMarker struct {
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Position    Coordinate `json:"position"`
}

// BaseMarker is the fixed reference point of the city being planned.
type BaseMarker struct {
	Label    string     `json:"label"`
	Position Coordinate `json:"position"`
}

// MarkerSnapshot is a copy of the store's state at one revision. Callers own the
// slices.
type MarkerSnapshot struct {
	Revision   uint64           `json:"revision"`
	Users      []UserMarker     `json:"user_markers"`
	Activities []ActivityMarker `json:"activity_markers"`
}

// Coordinates returns the positions of the user markers in list order.
func (s MarkerSnapshot) Coordinates() []Coordinate {
	out := make([]Coordinate, len(s.Users))
	for i, m := range s.Users {
		out[i] = m.Position
	}
	return out
}
