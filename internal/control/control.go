// Package control applies actuator state changes for a plant: it persists
// the new state, pushes it to the field device, and drives local relays
// when the plant is wired to this host.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/plant-monitor/internal/gpio"
	"github.com/sweeney/plant-monitor/internal/store"
)

// Store is the part of store.Store the controller uses.
type Store interface {
	Plant(ctx context.Context, id string) (store.Plant, error)
	ControlState(ctx context.Context, plantID string) (store.ControlState, error)
	SetControlState(ctx context.Context, plantID string, s store.ControlState) error
}

// Publisher pushes a control state to a field device.
type Publisher interface {
	PublishControl(deviceID string, s store.ControlState) error
}

// Controller sets and reads actuator state.
type Controller struct {
	store      Store
	publisher  Publisher
	relays     gpio.Writer
	relayPlant string
	now        func() time.Time
}

// New creates a Controller without local relays.
func New(st Store, pub Publisher) *Controller {
	return &Controller{store: st, publisher: pub, now: time.Now}
}

// WithRelays makes plantID's state drive w.
func (c *Controller) WithRelays(plantID string, w gpio.Writer) *Controller {
	c.relayPlant = plantID
	c.relays = w
	return c
}

// Get returns the plant's current control state.
func (c *Controller) Get(ctx context.Context, plantID string) (store.ControlState, error) {
	if _, err := c.store.Plant(ctx, plantID); err != nil {
		return store.ControlState{}, err
	}
	return c.store.ControlState(ctx, plantID)
}

// Set stamps, persists, publishes and applies s. Publishing and relay
// switching are both attempted once the state is saved; their failures
// are returned joined. The device picks up the state on its next poll.
func (c *Controller) Set(ctx context.Context, plantID string, s store.ControlState) (store.ControlState, error) {
	plant, err := c.store.Plant(ctx, plantID)
	if err != nil {
		return store.ControlState{}, err
	}

	s.UpdatedAt = c.now().UTC()
	if err := c.store.SetControlState(ctx, plantID, s); err != nil {
		return store.ControlState{}, fmt.Errorf("save control state: %w", err)
	}

	var errs []error
	if err := c.publisher.PublishControl(plant.DeviceID, s); err != nil {
		errs = append(errs, fmt.Errorf("publish control state: %w", err))
	}
	if err := c.applyRelays(plantID, s); err != nil {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}

// Sync drives the relays to the persisted state of the wired plant.
// Called once at startup.
func (c *Controller) Sync(ctx context.Context) error {
	if c.relays == nil {
		return nil
	}
	s, err := c.store.ControlState(ctx, c.relayPlant)
	if err != nil {
		return fmt.Errorf("load control state: %w", err)
	}
	return c.applyRelays(c.relayPlant, s)
}

func (c *Controller) applyRelays(plantID string, s store.ControlState) error {
	if c.relays == nil || plantID != c.relayPlant {
		return nil
	}
	outputs := []struct {
		a  gpio.Actuator
		on bool
	}{
		{gpio.Pump, s.WaterPump},
		{gpio.Fan, s.Fan},
		{gpio.Light, s.GrowLight},
	}
	for _, o := range outputs {
		if err := c.relays.Set(o.a, o.on); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}
	return nil
}
