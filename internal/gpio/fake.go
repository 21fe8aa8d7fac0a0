package gpio

import (
	"fmt"
	"sync"
)

// FakeWriter records relay writes for test assertions.
type FakeWriter struct {
	mu sync.Mutex

	// State holds the current output of each actuator.
	State map[Actuator]bool

	// Writes records every Set call in order.
	Writes []Write

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Write is one recorded Set call.
type Write struct {
	Actuator Actuator
	On       bool
}

// NewFakeWriter creates a FakeWriter with every output off.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{State: make(map[Actuator]bool)}
}

// Set records the write.
func (f *FakeWriter) Set(a Actuator, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	if _, ok := DefaultPins().pin(a); !ok {
		return fmt.Errorf("unknown actuator %q", a)
	}
	f.Writes = append(f.Writes, Write{Actuator: a, On: on})
	f.State[a] = on
	return nil
}

// Get returns the current output of a.
func (f *FakeWriter) Get(a Actuator) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.State[a]
}

// Close switches everything off and marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range Actuators {
		f.State[a] = false
	}
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.State = make(map[Actuator]bool)
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}
