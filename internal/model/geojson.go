package model

import (
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature renders the place as a GeoJSON feature with point geometry.
// Places without coordinates get a nil geometry.
func (p *Place) Feature() *geojson.Feature {
	var g geom.T
	if p.Coords != nil {
		g = geom.NewPointFlat(geom.XY, []float64{p.Coords.Lng, p.Coords.Lat})
	}
	return &geojson.Feature{
		ID:       p.Key,
		Geometry: g,
		Properties: map[string]any{
			"name":         p.Name,
			"address":      p.Address,
			"city_slug":    p.CitySlug,
			"category":     p.Category,
			"categories":   p.Categories,
			"phone":        p.Phone,
			"website":      p.Website,
			"rating":       p.Rating,
			"review_count": p.ReviewCount,
			"price_level":  p.PriceLevel,
			"is_closed":    p.IsClosed,
		},
	}
}

// FeatureCollection renders a set of places as a GeoJSON feature collection.
func FeatureCollection(places []Place) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(places))}
	for i := range places {
		fc.Features = append(fc.Features, places[i].Feature())
	}
	return fc
}
