package domain

import "fmt"

// MarkerClass names one of the three disjoint map layers.
type MarkerClass string

const (
	ClassBase     MarkerClass = "base"
	ClassUser     MarkerClass = "user"
	ClassActivity MarkerClass = "activity"
)

// MarkerClasses lists the layers in draw order.
var MarkerClasses = []MarkerClass{ClassBase, ClassUser, ClassActivity}

// MarkerStyle describes how a marker icon is drawn. Sizes and anchors are in
// pixels, [x, y].
type MarkerStyle struct {
	Color       string `json:"color" mapstructure:"color"`
	IconURL     string `json:"icon_url" mapstructure:"icon_url"`
	ShadowURL   string `json:"shadow_url" mapstructure:"shadow_url"`
	IconSize    [2]int `json:"icon_size" mapstructure:"icon_size"`
	IconAnchor  [2]int `json:"icon_anchor" mapstructure:"icon_anchor"`
	PopupAnchor [2]int `json:"popup_anchor" mapstructure:"popup_anchor"`
	ShadowSize  [2]int `json:"shadow_size" mapstructure:"shadow_size"`
}

// StyleRegistry maps each marker class to its style.
type StyleRegistry map[MarkerClass]MarkerStyle

const (
	colorMarkerBase = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-"
	markerShadowURL = "https://cdnjs.cloudflare.com/ajax/libs/leaflet/1.9.4/images/marker-shadow.png"
)

// ColorMarkerStyle returns the standard 25x41 pin in the given color.
func ColorMarkerStyle(color string) MarkerStyle {
	return MarkerStyle{
		Color:       color,
		IconURL:     colorMarkerBase + color + ".png",
		ShadowURL:   markerShadowURL,
		IconSize:    [2]int{25, 41},
		IconAnchor:  [2]int{12, 41},
		PopupAnchor: [2]int{1, -34},
		ShadowSize:  [2]int{41, 41},
	}
}

// DefaultStyles is red for the base, green for user markers, blue for activities.
func DefaultStyles() StyleRegistry {
	return StyleRegistry{
		ClassBase:     ColorMarkerStyle("red"),
		ClassUser:     ColorMarkerStyle("green"),
		ClassActivity: ColorMarkerStyle("blue"),
	}
}

// Style returns the style for class, falling back to the default registry.
func (r StyleRegistry) Style(class MarkerClass) MarkerStyle {
	if s, ok := r[class]; ok && s.IconURL != "" {
		return s
	}
	return DefaultStyles()[class]
}

// Validate checks that every class has an icon and that no two classes share one,
// so the layers stay visually distinguishable.
func (r StyleRegistry) Validate() error {
	seen := make(map[string]MarkerClass, len(MarkerClasses))
	for _, class := range MarkerClasses {
		s := r.Style(class)
		if prev, dup := seen[s.IconURL]; dup {
			return fmt.Errorf("styles: %s and %s share icon %q", prev, class, s.IconURL)
		}
		seen[s.IconURL] = class
	}
	return nil
}
