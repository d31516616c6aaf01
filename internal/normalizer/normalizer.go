// Package normalizer converts raw CAD payloads into GeoJSON feature
// collections.
//
// Normalizers are tried in registry order; the first whose Supports returns
// true handles the payload. Every feature produced carries a stable id and an
// event timestamp in its properties so downstream consumers can deduplicate
// and order events. Fields that cannot be parsed are dropped individually;
// only a payload that is not a JSON object (or array of objects) at all fails
// with apperr.ErrMalformedPayload.
package normalizer

import (
	"context"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// Normalizer converts a raw payload into a feature collection. Implementations
// must not modify payload.Body.
type Normalizer interface {
	Normalize(ctx context.Context, payload *models.RawPayload) (*models.FeatureCollection, error)
	Supports(payload *models.RawPayload) bool
}

// Registry holds ordered normalizers and finds a match for a given payload.
type Registry struct {
	items []Normalizer
}

// NewRegistry constructs a registry with provided normalizers.
func NewRegistry(items ...Normalizer) *Registry {
	return &Registry{items: items}
}

// Default builds the standard chain: GeoJSON passthrough, the field mapper
// when mapping rules name coordinates, and the CAD envelope fallback.
func Default(mapping Mapping) *Registry {
	items := []Normalizer{&GeoJSONPassthrough{}}
	if mapping.Enabled() {
		items = append(items, NewFieldMapper(mapping))
	}
	items = append(items, &CADEnvelope{})
	return NewRegistry(items...)
}

// Find returns the first normalizer that supports the payload.
func (r *Registry) Find(payload *models.RawPayload) Normalizer {
	if r == nil {
		return nil
	}
	for _, n := range r.items {
		if n.Supports(payload) {
			return n
		}
	}
	return nil
}

// Len returns the number of registered normalizers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}

// Normalize runs the first supporting normalizer. A payload nothing supports
// is malformed.
func (r *Registry) Normalize(ctx context.Context, payload *models.RawPayload) (*models.FeatureCollection, error) {
	if payload == nil {
		return nil, apperr.Malformed("No payload", nil)
	}
	n := r.Find(payload)
	if n == nil {
		return nil, apperr.Malformed("Unrecognized CAD payload", nil)
	}
	fc, err := n.Normalize(ctx, payload)
	if err != nil {
		return nil, err
	}
	if fc == nil {
		fc = models.NewFeatureCollection()
	}
	return fc, nil
}
