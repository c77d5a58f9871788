package mqtt

import (
	"sync/atomic"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type disconnectCounter struct {
	paho.Client
	disconnects atomic.Int32
}

func (c *disconnectCounter) Disconnect(quiesce uint) {
	c.disconnects.Add(1)
	c.Client.Disconnect(quiesce)
}

func TestDialStopsRetryingOnTimeout(t *testing.T) {
	var counter *disconnectCounter
	newClient = func(o *paho.ClientOptions) paho.Client {
		counter = &disconnectCounter{Client: paho.NewClient(o)}
		return counter
	}
	t.Cleanup(func() { newClient = paho.NewClient })

	// Nothing listens on port 1, so the retrying connect never completes.
	_, err := Dial(Config{Broker: "tcp://127.0.0.1:1", Timeout: 20 * time.Millisecond})
	require.Error(t, err)

	require.NotNil(t, counter)
	assert.Equal(t, int32(1), counter.disconnects.Load())
	assert.False(t, counter.IsConnected())
}
