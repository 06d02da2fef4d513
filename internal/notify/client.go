package notify

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/roach88/labengine/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
	maxPayloadSize           = 1 << 20
)

// Logger is the logging surface the client needs. *slog.Logger satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
}

// Client wraps paho.mqtt.golang for publishing.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   pahomqtt.Client
	qos      byte
	clientID string
	topics   Topics

	connected bool
	connMu    sync.RWMutex
}

// Connect connects to the broker in cfg, registers an offline last will on
// the presence topic and publishes an online presence message.
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(topics.Presence(cfg.ClientID), presencePayload(cfg.ClientID, "offline", "unexpected_disconnect"), 1, true)

	c := &Client{
		qos:      byte(cfg.QoS),
		clientID: cfg.ClientID,
		topics:   topics,
	}
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.setConnected(true)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		if logger != nil {
			logger.Warn("mqtt connection lost", "error", err)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	// The connect handler runs asynchronously.
	c.setConnected(true)

	if err := c.Publish(topics.Presence(cfg.ClientID), []byte(presencePayload(cfg.ClientID, "online", "")), c.qos, true); err != nil && logger != nil {
		logger.Warn("mqtt presence publish failed", "error", err)
	}
	return c, nil
}

// newClient wraps an existing paho client. Used by tests.
func newClient(pc pahomqtt.Client, qos byte, clientID string, topics Topics) *Client {
	return &Client{client: pc, qos: qos, clientID: clientID, topics: topics, connected: true}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return c.qos
}

// Publish sends payload to topic and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes a graceful offline presence message and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Presence(c.clientID), c.qos, true, presencePayload(c.clientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

func presencePayload(clientID, status, reason string) string {
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
			status, clientID, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`,
		status, clientID, reason, time.Now().UTC().Format(time.RFC3339))
}
