package normalizer

import (
	"context"
	"strings"
	"time"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// Mapping names the CAD fields that feed each feature property. Field names
// are dot-separated paths within a record. Records locates the record list
// within the payload; empty means the payload itself is the record (or array
// of records).
type Mapping struct {
	Records   string `mapstructure:"records"`
	ID        string `mapstructure:"id"`
	Time      string `mapstructure:"time"`
	Latitude  string `mapstructure:"latitude"`
	Longitude string `mapstructure:"longitude"`
	Callsign  string `mapstructure:"callsign"`
	Type      string `mapstructure:"type"`
	Remarks   string `mapstructure:"remarks"`
}

// Enabled reports whether the mapping can produce geometry.
func (m Mapping) Enabled() bool {
	return m.Latitude != "" && m.Longitude != ""
}

// FieldMapper builds Point features from CAD records using configured field
// names. CAD deployments differ, so no field names are assumed.
type FieldMapper struct {
	mapping Mapping
}

// NewFieldMapper constructs a FieldMapper.
func NewFieldMapper(mapping Mapping) *FieldMapper {
	return &FieldMapper{mapping: mapping}
}

// Supports returns true for JSON objects and arrays when coordinates are mapped.
func (f *FieldMapper) Supports(payload *models.RawPayload) bool {
	if !f.mapping.Enabled() {
		return false
	}
	v, err := decode(payload.Body)
	if err != nil {
		return false
	}
	_, ok := records(v)
	return ok
}

// Normalize maps each record to a feature. Records without usable
// coordinates are dropped; unusable optional fields are dropped individually.
func (f *FieldMapper) Normalize(_ context.Context, payload *models.RawPayload) (*models.FeatureCollection, error) {
	v, err := decode(payload.Body)
	if err != nil {
		return nil, err
	}

	// A bare array is already the record list.
	if obj, ok := v.(map[string]any); ok && f.mapping.Records != "" {
		nested, found := lookup(obj, f.mapping.Records)
		if !found {
			return models.NewFeatureCollection(), nil
		}
		v = nested
	}

	recs, ok := records(v)
	if !ok {
		return nil, apperr.Malformed("CAD records are not a JSON object or array", nil)
	}

	received := receivedAt(payload)
	features := make([]models.Feature, 0, len(recs))
	for _, rec := range recs {
		if feature, ok := f.mapRecord(rec, received); ok {
			features = append(features, feature)
		}
	}
	return models.NewFeatureCollection(features...), nil
}

func (f *FieldMapper) mapRecord(rec map[string]any, received time.Time) (models.Feature, bool) {
	latRaw, _ := lookup(rec, f.mapping.Latitude)
	lonRaw, _ := lookup(rec, f.mapping.Longitude)
	lat, latOK := asFloat(latRaw)
	lon, lonOK := asFloat(lonRaw)
	if !latOK || !lonOK || !validLatLon(lat, lon) {
		return models.Feature{}, false
	}

	id := ""
	if raw, found := lookup(rec, f.mapping.ID); found {
		id, _ = asString(raw)
	}
	if id == "" {
		id = stableID(rec)
	}

	ts := received
	if raw, found := lookup(rec, f.mapping.Time); found {
		if parsed, ok := asTime(raw); ok {
			ts = parsed
		}
	}

	feature := models.NewFeature(id, ts, models.NewPoint(lon, lat))
	if raw, found := lookup(rec, f.mapping.Callsign); found {
		if callsign, ok := asString(raw); ok {
			feature.Properties.Callsign = callsign
		}
	}
	if raw, found := lookup(rec, f.mapping.Type); found {
		if typ, ok := raw.(string); ok && typ != "" {
			feature.Properties.Type = typ
		}
	}
	if raw, found := lookup(rec, f.mapping.Remarks); found {
		if remarks, ok := raw.(string); ok {
			feature.Properties.Remarks = remarks
		}
	}

	// Mapped fields are excluded by their top-level key, so a nested path
	// like location.lat drops the whole location object from metadata.
	mapped := make(map[string]bool)
	for _, path := range []string{
		f.mapping.ID, f.mapping.Time, f.mapping.Latitude, f.mapping.Longitude,
		f.mapping.Callsign, f.mapping.Type, f.mapping.Remarks,
	} {
		if path != "" {
			mapped[strings.SplitN(path, ".", 2)[0]] = true
		}
	}
	metadata := make(map[string]any, len(rec))
	for k, val := range rec {
		if !mapped[k] {
			metadata[k] = val
		}
	}
	if len(metadata) > 0 {
		feature.Properties.Metadata = metadata
	}
	return feature, true
}
