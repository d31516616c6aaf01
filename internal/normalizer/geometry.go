package normalizer

import "github.com/telhawk-systems/etl-central-square/internal/models"

// parseGeometry validates a GeoJSON geometry object and converts its
// coordinates to float slices. Out-of-range positions invalidate it.
func parseGeometry(v any) (models.Geometry, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return models.Geometry{}, false
	}
	typ, _ := obj["type"].(string)
	coords := obj["coordinates"]

	switch typ {
	case models.GeometryPoint:
		pos, ok := parsePosition(coords)
		if !ok {
			return models.Geometry{}, false
		}
		return models.Geometry{Type: typ, Coordinates: pos}, true
	case models.GeometryLineString:
		line, ok := parsePositions(coords, 2)
		if !ok {
			return models.Geometry{}, false
		}
		return models.Geometry{Type: typ, Coordinates: line}, true
	case models.GeometryPolygon:
		rings, ok := coords.([]any)
		if !ok || len(rings) == 0 {
			return models.Geometry{}, false
		}
		out := make([][][]float64, 0, len(rings))
		for _, r := range rings {
			ring, ok := parsePositions(r, 4)
			if !ok {
				return models.Geometry{}, false
			}
			out = append(out, ring)
		}
		return models.Geometry{Type: typ, Coordinates: out}, true
	default:
		return models.Geometry{}, false
	}
}

func parsePositions(v any, min int) ([][]float64, bool) {
	items, ok := v.([]any)
	if !ok || len(items) < min {
		return nil, false
	}
	out := make([][]float64, 0, len(items))
	for _, item := range items {
		pos, ok := parsePosition(item)
		if !ok {
			return nil, false
		}
		out = append(out, pos)
	}
	return out, true
}

// parsePosition reads [lon, lat] with an optional altitude.
func parsePosition(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok || len(items) < 2 || len(items) > 3 {
		return nil, false
	}
	pos := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asFloat(item)
		if !ok {
			return nil, false
		}
		pos = append(pos, f)
	}
	if !validLatLon(pos[1], pos[0]) {
		return nil, false
	}
	return pos, true
}
