package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn bool

func (f fakeConn) IsConnected() bool { return bool(f) }

func TestCheckHealth(t *testing.T) {
	assert.Equal(t, HealthStatus{Connected: true}, CheckHealth(fakeConn(true)))

	down := CheckHealth(fakeConn(false))
	assert.False(t, down.Connected)
	assert.NotEmpty(t, down.Error)

	assert.False(t, CheckHealth(nil).Connected)
}
