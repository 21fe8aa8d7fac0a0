package mqtt

import (
	"sync"

	"github.com/sweeney/plant-monitor/internal/alert"
	"github.com/sweeney/plant-monitor/internal/store"
)

// ControlMessage is a control state recorded by FakePublisher.
type ControlMessage struct {
	DeviceID string
	State    store.ControlState
}

// FakePublisher records published messages for test assertions.
// Safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// Alerts contains all alerts that were published.
	Alerts []alert.Alert

	// Controls contains all control states that were published.
	Controls []ControlMessage

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishAlert and PublishControl.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishAlert records the alert.
func (f *FakePublisher) PublishAlert(a alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Alerts = append(f.Alerts, a)
	return nil
}

// PublishControl records the control state.
func (f *FakePublisher) PublishControl(deviceID string, s store.ControlState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Controls = append(f.Controls, ControlMessage{DeviceID: deviceID, State: s})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// AlertCount returns the number of published alerts.
func (f *FakePublisher) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}

// Events returns the names of recorded system events in order.
func (f *FakePublisher) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = nil
	f.Controls = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}

// FakeSubscriber hands messages straight to the registered handlers.
type FakeSubscriber struct {
	mu          sync.Mutex
	onReading   ReadingHandler
	onHeartbeat HeartbeatHandler

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error
}

// Subscribe stores the handlers.
func (f *FakeSubscriber) Subscribe(onReading ReadingHandler, onHeartbeat HeartbeatHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.onReading = onReading
	f.onHeartbeat = onHeartbeat
	return nil
}

// Deliver routes a raw message as the broker would.
func (f *FakeSubscriber) Deliver(topic string, payload []byte) {
	f.mu.Lock()
	onReading, onHeartbeat := f.onReading, f.onHeartbeat
	f.mu.Unlock()
	dispatch(topic, payload, onReading, onHeartbeat)
}
