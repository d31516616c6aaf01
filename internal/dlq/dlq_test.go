package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging/nats"
)

type published struct {
	subject string
	data    []byte
}

type fakeStreamClient struct {
	messages  []published
	streamErr error
	pubErr    error
}

func (f *fakeStreamClient) CreateOrUpdateStream(ctx context.Context, cfg nats.StreamConfig) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeStreamClient) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	if f.pubErr != nil {
		return nil, f.pubErr
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return &jetstream.PubAck{Stream: nats.DLQStream.Name, Sequence: uint64(len(f.messages))}, nil
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{apperr.Malformed("bad json", nil), ReasonMalformedPayload},
		{apperr.Validation("bad env", nil), ReasonValidation},
		{apperr.Submission("api down", nil), ReasonSubmissionFailure},
		{errors.New("boom"), ReasonUnknown},
		{nil, ReasonUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err))
	}
}

func TestNewFailedPayload(t *testing.T) {
	t.Run("json body kept as payload", func(t *testing.T) {
		failed := NewFailedPayload("hook", "req-1", []byte(`{"event":"fire"}`), apperr.Submission("down", nil))
		assert.Equal(t, "hook", failed.WebhookID)
		assert.Equal(t, "req-1", failed.RequestID)
		assert.JSONEq(t, `{"event":"fire"}`, string(failed.Payload))
		assert.Empty(t, failed.RawBody)
		assert.Equal(t, ReasonSubmissionFailure, failed.Reason)
		assert.Contains(t, failed.Error, "down")
		assert.False(t, failed.Timestamp.IsZero())
	})

	t.Run("non-json body kept raw", func(t *testing.T) {
		failed := NewFailedPayload("hook", "", []byte(`not json`), apperr.Malformed("bad", nil))
		assert.Nil(t, failed.Payload)
		assert.Equal(t, "not json", failed.RawBody)
		assert.Equal(t, ReasonMalformedPayload, failed.Reason)
	})
}

func TestNewJetStreamQueue(t *testing.T) {
	_, err := NewJetStreamQueue(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = NewJetStreamQueue(context.Background(), &fakeStreamClient{streamErr: errors.New("no jetstream")}, logging.Discard())
	assert.Error(t, err)

	q, err := NewJetStreamQueue(context.Background(), &fakeStreamClient{}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestJetStreamQueue_Write(t *testing.T) {
	client := &fakeStreamClient{}
	q, err := NewJetStreamQueue(context.Background(), client, logging.Discard())
	require.NoError(t, err)

	failed := NewFailedPayload("hook-1", "req", []byte(`{"a":1}`), apperr.Submission("api down", nil))
	require.NoError(t, q.Write(context.Background(), failed))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "etl.dlq.submission_failure", client.messages[0].subject)

	var decoded FailedPayload
	require.NoError(t, json.Unmarshal(client.messages[0].data, &decoded))
	assert.Equal(t, "hook-1", decoded.WebhookID)
	assert.Equal(t, ReasonSubmissionFailure, decoded.Reason)
	assert.Equal(t, uint64(1), q.Written())

	stats := q.Stats(context.Background())
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, uint64(1), stats["written_local"])
}

func TestJetStreamQueue_WriteDefaultsReason(t *testing.T) {
	client := &fakeStreamClient{}
	q, err := NewJetStreamQueue(context.Background(), client, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, q.Write(context.Background(), &FailedPayload{WebhookID: "x"}))
	require.Len(t, client.messages, 1)
	assert.Equal(t, "etl.dlq.unknown", client.messages[0].subject)
}

func TestJetStreamQueue_PublishError(t *testing.T) {
	client := &fakeStreamClient{pubErr: errors.New("timeout")}
	q, err := NewJetStreamQueue(context.Background(), client, logging.Discard())
	require.NoError(t, err)

	err = q.Write(context.Background(), NewFailedPayload("hook", "", nil, errors.New("x")))
	assert.Error(t, err)
	assert.Equal(t, uint64(0), q.Written())
}

func TestJetStreamQueue_Nil(t *testing.T) {
	var q *JetStreamQueue
	ctx := context.Background()

	assert.NoError(t, q.Write(ctx, &FailedPayload{}))
	assert.Equal(t, uint64(0), q.Written())
	assert.Equal(t, false, q.Stats(ctx)["enabled"])

	_, err := q.List(ctx, 10)
	assert.Error(t, err)
	assert.Error(t, q.Purge(ctx))
}
