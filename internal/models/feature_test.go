package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeatureCollection_EmptySerializesAsArray(t *testing.T) {
	data, err := json.Marshal(NewFeatureCollection())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestNewFeature_RequiredProperties(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("EST", -5*3600))
	f := NewFeature("evt-1", ts, NewPoint(-77.03, 38.89))

	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "evt-1", f.ID)
	assert.Equal(t, "evt-1", f.Properties.ID)
	assert.Equal(t, DefaultCoTType, f.Properties.Type)
	assert.Equal(t, "2026-03-01T17:30:00Z", f.Properties.Time)
	assert.Equal(t, f.Properties.Time, f.Properties.Start)
	assert.Equal(t, []float64{-77.03, 38.89}, f.Geometry.Coordinates)
}

func TestFeatureCollection_LenAndIDs(t *testing.T) {
	var nilFC *FeatureCollection
	assert.Equal(t, 0, nilFC.Len())
	assert.Nil(t, nilFC.IDs())

	now := time.Now()
	fc := NewFeatureCollection(
		NewFeature("a", now, NewPoint(0, 0)),
		NewFeature("b", now, NewPoint(1, 1)),
	)
	assert.Equal(t, 2, fc.Len())
	assert.Equal(t, []string{"a", "b"}, fc.IDs())
}
