package normalizer

import (
	"context"
	"time"

	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// knownProperties are lifted into models.Properties; everything else goes to
// metadata.
var knownProperties = map[string]bool{
	"id": true, "type": true, "callsign": true, "time": true,
	"start": true, "stale": true, "remarks": true, "metadata": true,
}

// GeoJSONPassthrough handles CAD deployments that already emit GeoJSON. Valid
// features are re-emitted with the required properties filled in; features
// with unusable geometry are dropped.
type GeoJSONPassthrough struct{}

// Supports returns true for a Feature or FeatureCollection object.
func (GeoJSONPassthrough) Supports(payload *models.RawPayload) bool {
	v, err := decode(payload.Body)
	if err != nil {
		return false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	switch obj["type"] {
	case "Feature", "FeatureCollection":
		return true
	}
	return false
}

// Normalize re-emits the payload's valid features.
func (GeoJSONPassthrough) Normalize(_ context.Context, payload *models.RawPayload) (*models.FeatureCollection, error) {
	v, err := decode(payload.Body)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(map[string]any)

	var raw []any
	switch obj["type"] {
	case "Feature":
		raw = []any{obj}
	case "FeatureCollection":
		raw, _ = obj["features"].([]any)
	}

	received := receivedAt(payload)
	features := make([]models.Feature, 0, len(raw))
	for _, item := range raw {
		if f, ok := passthroughFeature(item, received); ok {
			features = append(features, f)
		}
	}
	return models.NewFeatureCollection(features...), nil
}

func passthroughFeature(v any, received time.Time) (models.Feature, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return models.Feature{}, false
	}
	geometry, ok := parseGeometry(m["geometry"])
	if !ok {
		return models.Feature{}, false
	}
	props, _ := m["properties"].(map[string]any)

	id, ok := asString(props["id"])
	if !ok {
		if id, ok = asString(m["id"]); !ok {
			id = stableID(m)
		}
	}

	ts, ok := asTime(props["time"])
	if !ok {
		ts = received
	}

	f := models.NewFeature(id, ts, geometry)
	if typ, ok := props["type"].(string); ok && typ != "" {
		f.Properties.Type = typ
	}
	if callsign, ok := asString(props["callsign"]); ok {
		f.Properties.Callsign = callsign
	}
	if remarks, ok := props["remarks"].(string); ok {
		f.Properties.Remarks = remarks
	}
	if start, ok := asTime(props["start"]); ok {
		f.Properties.Start = start.UTC().Format(time.RFC3339)
	}

	metadata := map[string]any{}
	if existing, ok := props["metadata"].(map[string]any); ok {
		for k, val := range existing {
			metadata[k] = val
		}
	}
	for k, val := range props {
		if !knownProperties[k] {
			metadata[k] = val
		}
	}
	if len(metadata) > 0 {
		f.Properties.Metadata = metadata
	}
	return f, true
}

func receivedAt(payload *models.RawPayload) time.Time {
	if payload.ReceivedAt.IsZero() {
		return time.Now().UTC()
	}
	return payload.ReceivedAt
}
