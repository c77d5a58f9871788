package mqtt

import (
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	paho "github.com/eclipse/paho.mqtt.golang"
)

var newClient = paho.NewClient

// PahoClient publishes to an actual MQTT broker.
type PahoClient struct {
	client  paho.Client
	timeout time.Duration
}

// Dial connects to cfg.Broker. The broker marks the service offline through
// the last will if the connection drops.
func Dial(cfg Config) (*PahoClient, error) {
	cfg = cfg.withDefaults()
	errFactory := errors.New()

	if cfg.Broker == "" {
		return nil, errFactory.WithMessage(errors.ErrMQTTConnect, "no broker configured")
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.TopicPrefix+availabilitySuffix, availabilityOffline, 1, true)

	client := newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(2 * cfg.Timeout) {
		// Stops the background connect retries.
		client.Disconnect(0)
		return nil, errFactory.WithMessage(errors.ErrMQTTConnect, "connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, errFactory.Wrap(errors.ErrMQTTConnect, err)
	}

	return &PahoClient{client: client, timeout: cfg.Timeout}, nil
}

func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return errors.New().WithMessage(errors.ErrTimeout, "publish timeout")
	}
	return token.Error()
}

// Close disconnects, allowing a second for in-flight messages.
func (c *PahoClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
