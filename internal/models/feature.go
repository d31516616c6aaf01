// Package models holds the GeoJSON feature contract shared with the
// downstream tactical-awareness pipeline.
package models

import "time"

// Geometry types accepted by the downstream feature contract.
const (
	GeometryPoint      = "Point"
	GeometryLineString = "LineString"
	GeometryPolygon    = "Polygon"
)

// DefaultCoTType is the CoT type applied when a CAD record carries none.
const DefaultCoTType = "a-f-G"

// Geometry is a GeoJSON geometry. Coordinates is kept untyped because its
// nesting depth depends on Type.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// NewPoint builds a Point geometry. GeoJSON orders coordinates lon, lat.
func NewPoint(lon, lat float64) Geometry {
	return Geometry{Type: GeometryPoint, Coordinates: []float64{lon, lat}}
}

// Properties mirrors the node-CoT feature properties the pipeline requires.
// Metadata carries CAD-specific fields through untouched.
type Properties struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Callsign string         `json:"callsign,omitempty"`
	Time     string         `json:"time"`
	Start    string         `json:"start"`
	Remarks  string         `json:"remarks,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Feature is a single geospatial record.
type Feature struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

// NewFeature builds a feature with the contract's required properties set.
func NewFeature(id string, ts time.Time, geometry Geometry) Feature {
	stamp := ts.UTC().Format(time.RFC3339)
	return Feature{
		ID:   id,
		Type: "Feature",
		Properties: Properties{
			ID:    id,
			Type:  DefaultCoTType,
			Time:  stamp,
			Start: stamp,
		},
		Geometry: geometry,
	}
}

// FeatureCollection is the unit of submission. It is submitted as a whole or
// not at all.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns a collection whose Features slice is never nil,
// so an empty collection serializes as "features": [].
func NewFeatureCollection(features ...Feature) *FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// Len returns the number of features, treating a nil collection as empty.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// IDs returns the feature ids in order.
func (fc *FeatureCollection) IDs() []string {
	if fc == nil {
		return nil
	}
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		ids = append(ids, f.ID)
	}
	return ids
}
