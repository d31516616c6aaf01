package nats

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/etl-central-square/internal/messaging"
)

func TestNatsToMessage(t *testing.T) {
	msg := &nats.Msg{
		Subject: messaging.SubjectInvoke,
		Data:    []byte(`{"type":"control"}`),
		Reply:   "_INBOX.abc",
		Header:  nats.Header{},
	}
	msg.Header.Set("X-Request-ID", "req-1")

	m := natsToMessage(msg)
	assert.Equal(t, messaging.SubjectInvoke, m.Subject)
	assert.Equal(t, `{"type":"control"}`, string(m.Data))
	assert.Equal(t, "_INBOX.abc", m.Reply)
	assert.Equal(t, "req-1", m.Metadata["X-Request-ID"])
	assert.False(t, m.Timestamp.IsZero())
}

func TestMessageToNats(t *testing.T) {
	out := messageToNats(&messaging.Message{
		Subject:  "etl.features.cad",
		Data:     []byte("{}"),
		Metadata: map[string]string{"Nats-Msg-Id": "fc-1"},
	})
	assert.Equal(t, "etl.features.cad", out.Subject)
	assert.Equal(t, "fc-1", out.Header.Get("Nats-Msg-Id"))

	bare := messageToNats(&messaging.Message{Subject: "x"})
	assert.Nil(t, bare.Header)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, "etl-central-square", cfg.Name)
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(Config{URL: "nats://127.0.0.1:1", MaxReconnects: 1, Timeout: 100 * time.Millisecond})
	assert.Error(t, err)
}

func TestStreamSubjectsMatchHelpers(t *testing.T) {
	assert.Equal(t, []string{messaging.SubjectFeaturesPrefix + ".>"}, FeaturesStream.Subjects)
	assert.Equal(t, []string{messaging.SubjectDLQPrefix + ".>"}, DLQStream.Subjects)
}
