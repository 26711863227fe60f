package domain

// Place is a point of interest known to the reference recommendation service.
type Place struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Location    Coordinate `json:"location"`
	Distance    *float64   `json:"distance,omitempty"` // meters, computed
}

// Activity converts the place to the marker shape the planner renders.
func (p Place) Activity() ActivityMarker {
	return ActivityMarker{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Position:    p.Location,
	}
}
