// Package mqtt carries device telemetry in and alerts, control states, and
// lifecycle events out, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/plant-monitor/internal/alert"
	"github.com/sweeney/plant-monitor/internal/store"
)

// Topics. The + segment is the device id.
const (
	TopicReadings  = "devices/+/readings"
	TopicHeartbeat = "devices/+/heartbeat"
	TopicSystem    = "plant-monitor/system"
)

// ControlTopic is where a device's desired actuator state is retained.
func ControlTopic(deviceID string) string {
	return "devices/" + deviceID + "/controls"
}

// AlertTopic is where alerts for a plant are published.
func AlertTopic(plantID string) string {
	return "plants/" + plantID + "/alerts"
}

// Publisher publishes to MQTT.
type Publisher interface {
	// PublishAlert sends a plant alert.
	// Returns error if publishing fails (should not crash the process).
	PublishAlert(a alert.Alert) error

	// PublishControl sends a retained control state to a device.
	PublishControl(deviceID string, s store.ControlState) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingHandler receives parsed telemetry.
type ReadingHandler func(r DeviceReading)

// HeartbeatHandler receives device heartbeats.
type HeartbeatHandler func(deviceID string)

// Subscriber delivers device messages to handlers.
type Subscriber interface {
	Subscribe(onReading ReadingHandler, onHeartbeat HeartbeatHandler) error
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// DeviceReading is telemetry from a field device. A zero Timestamp means
// the device did not send one.
type DeviceReading struct {
	DeviceID     string
	Temperature  *float64
	Humidity     *float64
	SoilMoisture *float64
	LightLevel   *float64
	WaterLevel   *float64
	Timestamp    time.Time
}

// ReadingPayload is the JSON a device sends, over MQTT or HTTP.
type ReadingPayload struct {
	DeviceID     string   `json:"device_id,omitempty"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	SoilMoisture *float64 `json:"soil_moisture"`
	LightLevel   *float64 `json:"light_level"`
	WaterLevel   *float64 `json:"water_level,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

// ParseReadingPayload decodes device telemetry. The device id is taken
// from the body, or failing that from the topic. Temperature, humidity,
// soil moisture, and light level are required; water level and timestamp
// are optional.
func ParseReadingPayload(topic string, payload []byte) (DeviceReading, error) {
	var p ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return DeviceReading{}, fmt.Errorf("decode reading: %w", err)
	}
	return p.Reading(DeviceFromTopic(topic))
}

// Reading validates p. fallbackDevice is used when p has no device id.
func (p ReadingPayload) Reading(fallbackDevice string) (DeviceReading, error) {
	r := DeviceReading{
		DeviceID:     p.DeviceID,
		Temperature:  p.Temperature,
		Humidity:     p.Humidity,
		SoilMoisture: p.SoilMoisture,
		LightLevel:   p.LightLevel,
		WaterLevel:   p.WaterLevel,
	}
	if r.DeviceID == "" {
		r.DeviceID = fallbackDevice
	}

	var missing []string
	if r.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if r.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if r.Humidity == nil {
		missing = append(missing, "humidity")
	}
	if r.SoilMoisture == nil {
		missing = append(missing, "soil_moisture")
	}
	if r.LightLevel == nil {
		missing = append(missing, "light_level")
	}
	if len(missing) > 0 {
		return DeviceReading{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return DeviceReading{}, fmt.Errorf("parse timestamp: %w", err)
		}
		r.Timestamp = ts
	}
	return r, nil
}

// DeviceFromTopic extracts the device id from devices/<id>/<kind>.
// Returns "" if the topic does not have that shape.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// AlertPayload represents the MQTT message payload for an alert.
type AlertPayload struct {
	Alert AlertPayloadInner `json:"alert"`
}

// AlertPayloadInner contains the alert details.
type AlertPayloadInner struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	PlantID   string  `json:"plant_id"`
	PlantName string  `json:"plant_name"`
	Severity  string  `json:"severity"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
}

// FormatAlertPayload creates the JSON payload for an alert.
func FormatAlertPayload(a alert.Alert) ([]byte, error) {
	return json.Marshal(AlertPayload{
		Alert: AlertPayloadInner{
			ID:        a.ID,
			Timestamp: a.CreatedAt.UTC().Format(time.RFC3339),
			PlantID:   a.PlantID,
			PlantName: a.PlantName,
			Severity:  string(a.Severity),
			Title:     a.Title,
			Message:   a.Message,
			Value:     a.Value,
		},
	})
}

// ControlPayload is the control state a device applies. The same shape is
// served by the HTTP controls poll.
type ControlPayload struct {
	WaterPump bool   `json:"water_pump_on"`
	Fan       bool   `json:"fan_on"`
	GrowLight bool   `json:"grow_light_on"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// NewControlPayload converts a stored control state.
func NewControlPayload(s store.ControlState) ControlPayload {
	p := ControlPayload{
		WaterPump: s.WaterPump,
		Fan:       s.Fan,
		GrowLight: s.GrowLight,
	}
	if !s.UpdatedAt.IsZero() {
		p.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

// FormatControlPayload creates the JSON payload for a control state.
func FormatControlPayload(s store.ControlState) ([]byte, error) {
	return json.Marshal(NewControlPayload(s))
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// willPayload is registered with the broker as the last will. It has no
// timestamp because it is composed at connect time.
func willPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "connection lost"})
	return data
}
