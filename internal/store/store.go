// Package store holds the plant registry, sensor reading history, and
// actuator control state.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a plant does not exist.
var ErrNotFound = errors.New("not found")

// Plant is a monitored plant and the field device attached to it.
type Plant struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	PlantType      string    `yaml:"type" json:"plant_type"`
	DeviceID       string    `yaml:"device_id" json:"device_id"`
	Location       string    `yaml:"location" json:"location,omitempty"`
	TargetMoisture float64   `yaml:"target_moisture" json:"target_moisture"`
	LastSeen       time.Time `yaml:"-" json:"last_seen"`
}

// SensorReading is one telemetry sample. Nil fields were not reported by
// the device.
type SensorReading struct {
	PlantID      string    `json:"plant_id"`
	Temperature  *float64  `json:"temperature"`
	Humidity     *float64  `json:"humidity"`
	SoilMoisture *float64  `json:"soil_moisture"`
	LightLevel   *float64  `json:"light_level"`
	WaterLevel   *float64  `json:"water_level"`
	Timestamp    time.Time `json:"timestamp"`
}

// ControlState is the desired state of a plant's actuators.
type ControlState struct {
	WaterPump bool      `json:"water_pump_on"`
	Fan       bool      `json:"fan_on"`
	GrowLight bool      `json:"grow_light_on"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is a stored alert a user can list and mark read.
type Notification struct {
	ID        string    `json:"id"`
	PlantID   string    `json:"plant_id"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists plants, readings, and control states.
type Store interface {
	// Plants returns every registered plant ordered by ID.
	Plants(ctx context.Context) ([]Plant, error)

	// Plant returns ErrNotFound for an unknown id.
	Plant(ctx context.Context, id string) (Plant, error)

	// PlantByDevice returns ErrNotFound if no plant uses deviceID.
	PlantByDevice(ctx context.Context, deviceID string) (Plant, error)

	// TouchPlant records that the plant's device was heard from at t.
	TouchPlant(ctx context.Context, id string, t time.Time) error

	AddReading(ctx context.Context, r SensorReading) error

	// ReadingsSince returns readings at or after since, oldest first.
	ReadingsSince(ctx context.Context, plantID string, since time.Time) ([]SensorReading, error)

	// LatestReading reports false if the plant has no readings.
	LatestReading(ctx context.Context, plantID string) (SensorReading, bool, error)

	// ControlState returns the zero state if none was ever set.
	ControlState(ctx context.Context, plantID string) (ControlState, error)
	SetControlState(ctx context.Context, plantID string, s ControlState) error

	AddNotification(ctx context.Context, n Notification) error

	// Notifications returns newest first, at most limit (0 means all).
	Notifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error)

	// MarkNotificationRead returns ErrNotFound for an unknown id.
	MarkNotificationRead(ctx context.Context, id string) error

	// MarkAllNotificationsRead returns how many were unread.
	MarkAllNotificationsRead(ctx context.Context) (int, error)

	Close() error
}
