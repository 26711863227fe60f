package mapview

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders the view as GeoJSON, one point feature per marker in
// draw order. Layer, index and style travel as properties.
func FeatureCollection(v View) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range v.Layers {
		for _, it := range l.Items {
			f := geojson.NewFeature(orb.Point(it.Position.LonLat()))
			f.ID = string(it.Layer) + "-" + strconv.Itoa(it.Index)
			f.Properties["layer"] = string(it.Layer)
			f.Properties["index"] = it.Index
			f.Properties["title"] = it.Title
			f.Properties["color"] = l.Style.Color
			f.Properties["icon_url"] = l.Style.IconURL
			if it.Category != "" {
				f.Properties["category"] = it.Category
			}
			if it.Description != "" {
				f.Properties["description"] = it.Description
			}
			if it.RemovePath != "" {
				f.Properties["remove_path"] = it.RemovePath
			}
			fc.Append(f)
		}
	}
	if v.Bounds != nil {
		fc.BBox = geojson.BBox{v.Bounds.MinLon, v.Bounds.MinLat, v.Bounds.MaxLon, v.Bounds.MaxLat}
	}
	fc.ExtraMembers = geojson.Properties{
		"revision":   v.Revision,
		"requesting": v.Requesting,
	}
	return fc
}
