package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/etlapi"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

type recordingPublisher struct {
	subject string
	data    []byte
	calls   int
	err     error
}

func (p *recordingPublisher) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	p.calls++
	p.subject = subject
	p.data = data
	if p.err != nil {
		return nil, p.err
	}
	return &jetstream.PubAck{Stream: "ETL_FEATURES", Sequence: uint64(p.calls)}, nil
}

type countingSubmitter struct {
	calls int
	err   error
}

func (c *countingSubmitter) Submit(ctx context.Context, fc *models.FeatureCollection) error {
	c.calls++
	return c.err
}

func sampleCollection() *models.FeatureCollection {
	return models.NewFeatureCollection(
		models.NewFeature("evt-1", time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), models.NewPoint(-77, 38)),
	)
}

func TestNATSSubmitter_PublishesOnce(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewNATSSubmitter(pub, "cad-incidents")

	require.NoError(t, s.Submit(context.Background(), sampleCollection()))
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "etl.features.cad-incidents", pub.subject)
	assert.Equal(t, s.Subject(), pub.subject)

	var fc models.FeatureCollection
	require.NoError(t, json.Unmarshal(pub.data, &fc))
	assert.Equal(t, []string{"evt-1"}, fc.IDs())
}

func TestNATSSubmitter_Failure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: timeout")}
	err := NewNATSSubmitter(pub, "x").Submit(context.Background(), sampleCollection())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSubmission))
	assert.Equal(t, 1, pub.calls)
}

func TestHTTPSubmitter(t *testing.T) {
	status := http.StatusOK
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))
	defer server.Close()

	s := NewHTTPSubmitter(etlapi.New(etlapi.Config{BaseURL: server.URL, Connection: "1", Layer: "2"}))

	require.NoError(t, s.Submit(context.Background(), sampleCollection()))

	status = http.StatusBadRequest
	err := s.Submit(context.Background(), sampleCollection())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSubmission))
	assert.Equal(t, 2, calls)
}

func TestLogSubmitter(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSubmitter(logging.NewWithWriter(&buf, slog.LevelInfo, "json"))

	require.NoError(t, s.Submit(context.Background(), sampleCollection()))
	assert.Contains(t, buf.String(), `"features":1`)
	assert.Contains(t, buf.String(), `"evt-1"`)
}

func TestInstrumented_PassesThrough(t *testing.T) {
	next := &countingSubmitter{}
	s := NewInstrumented(next, "test")
	require.NoError(t, s.Submit(context.Background(), sampleCollection()))
	assert.Equal(t, 1, next.calls)

	next.err = apperr.Submission("down", nil)
	err := s.Submit(context.Background(), sampleCollection())
	assert.True(t, errors.Is(err, apperr.ErrSubmission))
	assert.Equal(t, 2, next.calls)
}
