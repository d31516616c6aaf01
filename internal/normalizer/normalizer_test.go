package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

var received = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func payload(body string) *models.RawPayload {
	return &models.RawPayload{
		Source:     models.SourceWebhook,
		WebhookID:  "abc123",
		Body:       []byte(body),
		ReceivedAt: received,
	}
}

func TestRegistry_BaselineReturnsEmptyCollection(t *testing.T) {
	reg := Default(Mapping{})
	assert.Equal(t, 2, reg.Len())

	fc, err := reg.Normalize(context.Background(), payload(`{"event":"fire"}`))
	require.NoError(t, err)
	require.NotNil(t, fc)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.NotNil(t, fc.Features)
	assert.Empty(t, fc.Features)
}

func TestRegistry_MalformedPayloads(t *testing.T) {
	reg := Default(Mapping{Latitude: "lat", Longitude: "lon"})

	bodies := map[string]string{
		"empty":          ``,
		"whitespace":     "  \n ",
		"not json":       `event=fire`,
		"bare string":    `"fire"`,
		"bare number":    `42`,
		"null":           `null`,
		"trailing data":  `{"event":"fire"} {"event":"flood"}`,
		"truncated json": `{"event":`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			fc, err := reg.Normalize(context.Background(), payload(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrMalformedPayload), "got %v", err)
			assert.Nil(t, fc)
		})
	}
}

func TestRegistry_NilPayload(t *testing.T) {
	_, err := Default(Mapping{}).Normalize(context.Background(), nil)
	assert.True(t, errors.Is(err, apperr.ErrMalformedPayload))
}

func TestRegistry_EmptyRegistryRejects(t *testing.T) {
	_, err := NewRegistry().Normalize(context.Background(), payload(`{}`))
	assert.True(t, errors.Is(err, apperr.ErrMalformedPayload))
}

func TestRegistry_DoesNotMutateBody(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[-77,38]},"properties":{}}]}`
	p := payload(body)
	original := bytes.Clone(p.Body)

	_, err := Default(Mapping{}).Normalize(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, original, p.Body)
}

func TestGeoJSONPassthrough(t *testing.T) {
	body := `{
		"type": "FeatureCollection",
		"features": [
			{"type":"Feature","id":"unit-7","geometry":{"type":"Point","coordinates":[-77.03,38.89]},
			 "properties":{"callsign":"ENGINE 7","time":"2026-10-18T08:59:00Z","type":"a-f-G-U-C","station":"12"}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[500,38.89]},"properties":{"id":"bad-lon"}},
			{"type":"Feature","geometry":null,"properties":{"id":"no-geom"}},
			{"type":"Feature","geometry":{"type":"LineString","coordinates":[[-77,38],[-77.1,38.1]]},"properties":{"id":"route-1","time":"garbage"}},
			"not a feature"
		]
	}`

	p := payload(body)
	n := GeoJSONPassthrough{}
	require.True(t, n.Supports(p))

	fc, err := n.Normalize(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	unit := fc.Features[0]
	assert.Equal(t, "unit-7", unit.ID)
	assert.Equal(t, "ENGINE 7", unit.Properties.Callsign)
	assert.Equal(t, "a-f-G-U-C", unit.Properties.Type)
	assert.Equal(t, "2026-10-18T08:59:00Z", unit.Properties.Time)
	assert.Equal(t, "12", unit.Properties.Metadata["station"])
	assert.Equal(t, []float64{-77.03, 38.89}, unit.Geometry.Coordinates)

	route := fc.Features[1]
	assert.Equal(t, "route-1", route.ID)
	assert.Equal(t, models.GeometryLineString, route.Geometry.Type)
	assert.Equal(t, received.Format(time.RFC3339), route.Properties.Time, "unparseable time falls back to receipt time")
}

func TestGeoJSONPassthrough_SingleFeatureWithDerivedID(t *testing.T) {
	body := `{"type":"Feature","geometry":{"type":"Point","coordinates":[10,20]},"properties":{"callsign":"MEDIC 3"}}`

	fc1, err := GeoJSONPassthrough{}.Normalize(context.Background(), payload(body))
	require.NoError(t, err)
	fc2, err := GeoJSONPassthrough{}.Normalize(context.Background(), payload(body))
	require.NoError(t, err)

	require.Len(t, fc1.Features, 1)
	assert.NotEmpty(t, fc1.Features[0].ID)
	assert.Equal(t, fc1.Features[0].ID, fc2.Features[0].ID, "ids must be stable across redelivery")
}

func TestGeoJSONPassthrough_Polygon(t *testing.T) {
	body := `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"id":"zone"}}`
	fc, err := GeoJSONPassthrough{}.Normalize(context.Background(), payload(body))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, [][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, fc.Features[0].Geometry.Coordinates)
}

func TestGeoJSONPassthrough_DoesNotSupportPlainCAD(t *testing.T) {
	assert.False(t, GeoJSONPassthrough{}.Supports(payload(`{"event":"fire"}`)))
	assert.False(t, GeoJSONPassthrough{}.Supports(payload(`not json`)))
}

func TestFieldMapper_MapsRecords(t *testing.T) {
	mapping := Mapping{
		Records:   "incidents",
		ID:        "IncidentNumber",
		Time:      "ReportedAt",
		Latitude:  "Location.Lat",
		Longitude: "Location.Lon",
		Callsign:  "Nature",
		Remarks:   "Comments",
	}
	body := `{
		"agency": "County Fire",
		"incidents": [
			{"IncidentNumber": "F26-0001", "ReportedAt": "10/18/2026 08:45:10", "Nature": "STRUCTURE FIRE",
			 "Comments": "smoke showing", "Location": {"Lat": "38.8951", "Lon": -77.0364}, "Priority": 1},
			{"IncidentNumber": 2002, "ReportedAt": 1792313110, "Nature": 17,
			 "Location": {"Lat": 38.9, "Lon": -77.1}},
			{"IncidentNumber": "F26-0003", "ReportedAt": "yesterday", "Location": {"Lat": "north", "Lon": -77.1}},
			{"IncidentNumber": "F26-0004", "Location": {"Lat": 91, "Lon": 0}}
		]
	}`

	n := NewFieldMapper(mapping)
	p := payload(body)
	require.True(t, n.Supports(p))

	fc, err := n.Normalize(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2, "records without usable coordinates are dropped")

	first := fc.Features[0]
	assert.Equal(t, "F26-0001", first.ID)
	assert.Equal(t, "STRUCTURE FIRE", first.Properties.Callsign)
	assert.Equal(t, "smoke showing", first.Properties.Remarks)
	assert.Equal(t, "2026-10-18T08:45:10Z", first.Properties.Time)
	assert.Equal(t, []float64{-77.0364, 38.8951}, first.Geometry.Coordinates)
	assert.Contains(t, first.Properties.Metadata, "Priority")
	assert.NotContains(t, first.Properties.Metadata, "IncidentNumber")

	second := fc.Features[1]
	assert.Equal(t, "2002", second.ID)
	assert.Equal(t, "17", second.Properties.Callsign)
	assert.Equal(t, time.Unix(1792313110, 0).UTC().Format(time.RFC3339), second.Properties.Time)
}

func TestFieldMapper_MissingRecordsPathYieldsEmpty(t *testing.T) {
	n := NewFieldMapper(Mapping{Records: "incidents", Latitude: "lat", Longitude: "lon"})
	fc, err := n.Normalize(context.Background(), payload(`{"event":"fire"}`))
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestFieldMapper_TopLevelArray(t *testing.T) {
	n := NewFieldMapper(Mapping{Latitude: "lat", Longitude: "lon"})
	fc, err := n.Normalize(context.Background(), payload(`[{"lat":1,"lon":2},{"lat":3,"lon":4},7]`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.NotEqual(t, fc.Features[0].ID, fc.Features[1].ID)
}

func TestFieldMapper_TopLevelArrayWithRecordsPath(t *testing.T) {
	n := NewFieldMapper(Mapping{Records: "incidents", ID: "id", Latitude: "lat", Longitude: "lon"})
	fc, err := n.Normalize(context.Background(), payload(`[{"lat":38.9,"lon":-77.0,"id":"A"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, fc.IDs())
}

func TestFieldMapper_NestedFieldsLeaveMetadata(t *testing.T) {
	n := NewFieldMapper(Mapping{ID: "id", Latitude: "location.lat", Longitude: "location.lon"})
	fc, err := n.Normalize(context.Background(), payload(`{"id":"A","location":{"lat":38.9,"lon":-77.0},"extra":1}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	metadata := fc.Features[0].Properties.Metadata
	assert.NotContains(t, metadata, "location")
	assert.NotContains(t, metadata, "id")
	assert.Contains(t, metadata, "extra")
}

func TestFieldMapper_DisabledWithoutCoordinates(t *testing.T) {
	n := NewFieldMapper(Mapping{ID: "id"})
	assert.False(t, n.Supports(payload(`{"id":"x"}`)))
	assert.Equal(t, 2, Default(Mapping{ID: "id"}).Len())
}

func TestFieldMapper_FakeIncidents(t *testing.T) {
	faker := gofakeit.New(42)
	n := NewFieldMapper(Mapping{Records: "calls", ID: "id", Latitude: "lat", Longitude: "lon", Callsign: "unit"})

	calls := make([]map[string]any, 0, 25)
	for i := 0; i < 25; i++ {
		calls = append(calls, map[string]any{
			"id":   fmt.Sprintf("CAD-%05d", i),
			"lat":  faker.Latitude(),
			"lon":  faker.Longitude(),
			"unit": faker.LetterN(4),
		})
	}
	body, err := json.Marshal(map[string]any{"calls": calls})
	require.NoError(t, err)

	fc, err := n.Normalize(context.Background(), &models.RawPayload{Body: body})
	require.NoError(t, err)
	require.Len(t, fc.Features, 25)
	for i, f := range fc.Features {
		assert.Equal(t, fmt.Sprintf("CAD-%05d", i), f.ID)
		assert.NotEmpty(t, f.Properties.Time)
	}
}

func TestAsTime(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2026-10-18T08:00:00Z", time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC), true},
		{"space separated", "2026-10-18 08:00:00", time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC), true},
		{"epoch seconds", json.Number("1792310400"), time.Unix(1792310400, 0).UTC(), true},
		{"epoch millis", json.Number("1792310400000"), time.UnixMilli(1792310400000).UTC(), true},
		{"garbage", "soon", time.Time{}, false},
		{"negative", json.Number("-5"), time.Time{}, false},
		{"missing", nil, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}
