package simulate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/etl-central-square/internal/models"
	"github.com/telhawk-systems/etl-central-square/internal/normalizer"
)

func TestGenerator_Incident(t *testing.T) {
	g := NewGenerator(42, 38.9, -77.03, 0.05)

	for i := 0; i < 50; i++ {
		inc := g.Incident()
		assert.NotEmpty(t, inc.IncidentNumber)
		assert.Contains(t, callTypes, inc.CallType)
		assert.Contains(t, units, inc.Unit)
		assert.InDelta(t, 38.9, inc.Latitude, 0.05)
		assert.InDelta(t, -77.03, inc.Longitude, 0.05)
		assert.False(t, inc.CallReceived.IsZero())
	}
}

func TestBatch_NormalizesWithSampleMapping(t *testing.T) {
	batch := NewGenerator(7, 38.9, -77.03, 0.05).Batch(5)
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	fc, err := normalizer.Default(SampleMapping()).Normalize(context.Background(), &models.RawPayload{
		Source: models.SourceWebhook,
		Body:   body,
	})
	require.NoError(t, err)
	require.Equal(t, 5, fc.Len())

	for i, f := range fc.Features {
		assert.Equal(t, batch.Incidents[i].IncidentNumber, f.ID)
		assert.Equal(t, batch.Incidents[i].Unit, f.Properties.Callsign)
		assert.Equal(t, models.GeometryPoint, f.Geometry.Type)
	}
}

func TestPost(t *testing.T) {
	var gotPath string
	var gotBatch Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBatch)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"message":"Received"}`))
	}))
	defer srv.Close()

	batch := NewGenerator(1, 0, 0, 1).Batch(3)
	resp, err := Post(context.Background(), srv.Client(), srv.URL+"/", "abc123", batch)
	require.NoError(t, err)

	assert.Equal(t, "/abc123", gotPath)
	assert.Len(t, gotBatch.Incidents, 3)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "Received", resp.Message)
}
