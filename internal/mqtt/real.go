package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/plant-monitor/internal/alert"
	"github.com/sweeney/plant-monitor/internal/store"
)

const (
	defaultBufferSize = 500
	publishTimeout    = 5 * time.Second
)

// ClientConfig configures the broker connection.
type ClientConfig struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int // messages held while disconnected; 0 means default
}

// RealClient publishes to and subscribes on an actual MQTT broker.
// Messages published while disconnected are buffered and replayed in order
// once the connection comes back.
type RealClient struct {
	client paho.Client

	mu          sync.Mutex
	buffer      *ringBuffer
	onReading   ReadingHandler
	onHeartbeat HeartbeatHandler
	connectedAt time.Time
	connected   bool // guarded by mu; decides buffer vs send
}

// NewRealClient creates a client for the given broker. Connection happens
// in the background: an unreachable broker does not fail startup.
func NewRealClient(cfg ClientConfig) *RealClient {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	c := &RealClient{buffer: newRingBuffer(size)}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(TopicSystem, string(willPayload()), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.markDisconnected()
			log.Printf("mqtt: connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	c.client.Connect()
	return c
}

// onConnect runs on the first connect and every reconnect.
func (c *RealClient) onConnect(client paho.Client) {
	first, pending, dropped := c.markConnected()
	c.mu.Lock()
	subscribed := c.onReading != nil
	c.mu.Unlock()

	log.Printf("mqtt: connected")

	if subscribed {
		if err := c.subscribe(); err != nil {
			log.Printf("mqtt: resubscribe failed: %v", err)
		}
	}

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages (%d dropped)", len(pending), dropped)
	}
	for _, m := range pending {
		token := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("mqtt: replay to %s timed out", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay to %s failed: %v", m.topic, err)
		}
	}

	if !first {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		client.Publish(TopicSystem, 1, false, payload)
	}
}

// markConnected flips the client to connected and takes the buffered
// messages in the same critical section, so a concurrent publish either
// lands in the drained batch or is sent directly.
func (c *RealClient) markConnected() (first bool, pending []bufferedMsg, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	first = c.connectedAt.IsZero()
	c.connectedAt = time.Now()
	c.connected = true
	return first, c.buffer.drainAll(), c.buffer.takeDropped()
}

func (c *RealClient) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// bufferIfOffline buffers m and reports true while disconnected.
func (c *RealClient) bufferIfOffline(m bufferedMsg) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return false
	}
	c.buffer.push(m)
	return true
}

// Subscribe registers handlers for device readings and heartbeats. The
// subscription is renewed on every reconnect.
func (c *RealClient) Subscribe(onReading ReadingHandler, onHeartbeat HeartbeatHandler) error {
	c.mu.Lock()
	c.onReading = onReading
	c.onHeartbeat = onHeartbeat
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe()
}

func (c *RealClient) subscribe() error {
	filters := map[string]byte{
		TopicReadings:  1,
		TopicHeartbeat: 0,
	}
	token := c.client.SubscribeMultiple(filters, c.handleMessage)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (c *RealClient) handleMessage(_ paho.Client, msg paho.Message) {
	c.mu.Lock()
	onReading, onHeartbeat := c.onReading, c.onHeartbeat
	c.mu.Unlock()

	dispatch(msg.Topic(), msg.Payload(), onReading, onHeartbeat)
}

// dispatch routes a device message by its topic suffix.
func dispatch(topic string, payload []byte, onReading ReadingHandler, onHeartbeat HeartbeatHandler) {
	device := DeviceFromTopic(topic)
	if device == "" {
		log.Printf("mqtt: ignoring message on %s", topic)
		return
	}

	switch {
	case topic == "devices/"+device+"/readings":
		r, err := ParseReadingPayload(topic, payload)
		if err != nil {
			log.Printf("mqtt: bad reading from %s: %v", device, err)
			return
		}
		if onReading != nil {
			onReading(r)
		}
	case topic == "devices/"+device+"/heartbeat":
		if onHeartbeat != nil {
			onHeartbeat(device)
		}
	default:
		log.Printf("mqtt: ignoring message on %s", topic)
	}
}

// PublishAlert sends a plant alert.
func (c *RealClient) PublishAlert(a alert.Alert) error {
	payload, err := FormatAlertPayload(a)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}
	return c.publish(AlertTopic(a.PlantID), 1, false, payload)
}

// PublishControl sends a retained control state so a device picks it up
// on its next connect.
func (c *RealClient) PublishControl(deviceID string, s store.ControlState) error {
	payload, err := FormatControlPayload(s)
	if err != nil {
		return fmt.Errorf("format control payload: %w", err)
	}
	return c.publish(ControlTopic(deviceID), 1, true, payload)
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if c.bufferIfOffline(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}) {
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	c.markDisconnected()
	return nil
}
