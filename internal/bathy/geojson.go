package bathy

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature converts one contour feature to GeoJSON: a MultiLineString for
// traced levels, a Polygon for the fallback ring.
func (f ContourFeature) Feature() *geojson.Feature {
	var geom orb.Geometry = f.Lines
	if f.Fallback && len(f.Lines) == 1 {
		geom = orb.Polygon{orb.Ring(f.Lines[0])}
	}
	feat := geojson.NewFeature(geom)
	feat.Properties["depth"] = f.Level
	if f.Fallback {
		feat.Properties["fallback"] = true
	}
	return feat
}

// FeatureCollection renders the result as GeoJSON, one feature per level.
func (r *GenerationResult) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range r.Features {
		fc.Append(f.Feature())
	}
	return fc
}
