// Package ingest records device telemetry and heartbeats against the plant
// each device is registered to. MQTT and HTTP both feed it.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/plant-monitor/internal/mqtt"
	"github.com/sweeney/plant-monitor/internal/status"
	"github.com/sweeney/plant-monitor/internal/store"
)

// Store is the part of store.Store ingest writes to.
type Store interface {
	PlantByDevice(ctx context.Context, deviceID string) (store.Plant, error)
	TouchPlant(ctx context.Context, id string, t time.Time) error
	AddReading(ctx context.Context, r store.SensorReading) error
}

// Ingester resolves devices to plants and stores what they send.
type Ingester struct {
	store   Store
	tracker *status.Tracker
	now     func() time.Time
}

// New creates an Ingester. tracker may be nil.
func New(st Store, tracker *status.Tracker) *Ingester {
	return &Ingester{store: st, tracker: tracker, now: time.Now}
}

// Reading stores r for the device's plant. A reading without a timestamp
// is stamped with the receive time. An unknown device yields an error
// wrapping store.ErrNotFound.
func (in *Ingester) Reading(ctx context.Context, r mqtt.DeviceReading) (store.SensorReading, error) {
	plant, err := in.store.PlantByDevice(ctx, r.DeviceID)
	if err != nil {
		in.rejected()
		return store.SensorReading{}, fmt.Errorf("lookup plant: %w", err)
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = in.now()
	}
	sr := store.SensorReading{
		PlantID:      plant.ID,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		SoilMoisture: r.SoilMoisture,
		LightLevel:   r.LightLevel,
		WaterLevel:   r.WaterLevel,
		Timestamp:    ts.UTC(),
	}
	if err := in.store.AddReading(ctx, sr); err != nil {
		return store.SensorReading{}, fmt.Errorf("save reading: %w", err)
	}
	if err := in.store.TouchPlant(ctx, plant.ID, in.now()); err != nil {
		return store.SensorReading{}, fmt.Errorf("touch plant: %w", err)
	}

	if in.tracker != nil {
		in.tracker.RecordReading(sr.Timestamp)
	}
	return sr, nil
}

// Heartbeat marks the device's plant as seen and returns the time recorded.
func (in *Ingester) Heartbeat(ctx context.Context, deviceID string) (time.Time, error) {
	plant, err := in.store.PlantByDevice(ctx, deviceID)
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup plant: %w", err)
	}
	now := in.now().UTC()
	if err := in.store.TouchPlant(ctx, plant.ID, now); err != nil {
		return time.Time{}, fmt.Errorf("touch plant: %w", err)
	}
	if in.tracker != nil {
		in.tracker.RecordHeartbeat()
	}
	return now, nil
}

// Rejected counts a message that never reached Reading, such as one that
// failed to parse.
func (in *Ingester) Rejected() {
	in.rejected()
}

func (in *Ingester) rejected() {
	if in.tracker != nil {
		in.tracker.RecordRejected()
	}
}
