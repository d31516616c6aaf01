package normalizer

import (
	"context"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// CADEnvelope is the fallback normalizer. It accepts any JSON object or array
// of objects and yields an empty collection: without mapping rules there is
// no geometry to extract. Anything else is malformed.
type CADEnvelope struct{}

// Supports returns true for every payload so the envelope check always runs last.
func (CADEnvelope) Supports(*models.RawPayload) bool {
	return true
}

// Normalize checks the envelope and returns an empty collection.
func (CADEnvelope) Normalize(_ context.Context, payload *models.RawPayload) (*models.FeatureCollection, error) {
	v, err := decode(payload.Body)
	if err != nil {
		return nil, err
	}
	if _, ok := records(v); !ok {
		return nil, apperr.Malformed("Payload is not a JSON object or array", nil)
	}
	return models.NewFeatureCollection(), nil
}
