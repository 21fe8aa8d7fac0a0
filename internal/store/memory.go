package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	plants    map[string]Plant
	byDevice  map[string]string
	readings  map[string][]SensorReading
	controls  map[string]ControlState
	notes     []Notification // oldest first
	retention time.Duration
}

// NewMemory creates a store seeded with plants. Readings older than
// retention (relative to the newest reading for the plant) are dropped on
// insert; zero keeps everything.
func NewMemory(plants []Plant, retention time.Duration) *Memory {
	m := &Memory{
		plants:    make(map[string]Plant, len(plants)),
		byDevice:  make(map[string]string, len(plants)),
		readings:  make(map[string][]SensorReading),
		controls:  make(map[string]ControlState),
		retention: retention,
	}
	for _, p := range plants {
		m.plants[p.ID] = p
		m.byDevice[p.DeviceID] = p.ID
	}
	return m
}

func (m *Memory) Plants(ctx context.Context) ([]Plant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Plant, 0, len(m.plants))
	for _, p := range m.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Plant(ctx context.Context, id string) (Plant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plants[id]
	if !ok {
		return Plant{}, fmt.Errorf("plant %q: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) PlantByDevice(ctx context.Context, deviceID string) (Plant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byDevice[deviceID]
	if !ok {
		return Plant{}, fmt.Errorf("device %q: %w", deviceID, ErrNotFound)
	}
	return m.plants[id], nil
}

func (m *Memory) TouchPlant(ctx context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plants[id]
	if !ok {
		return fmt.Errorf("plant %q: %w", id, ErrNotFound)
	}
	if t.After(p.LastSeen) {
		p.LastSeen = t
		m.plants[id] = p
	}
	return nil
}

// AddReading inserts r in timestamp order; devices may deliver late.
func (m *Memory) AddReading(ctx context.Context, r SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plants[r.PlantID]; !ok {
		return fmt.Errorf("plant %q: %w", r.PlantID, ErrNotFound)
	}

	list := m.readings[r.PlantID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(r.Timestamp) })
	list = append(list, SensorReading{})
	copy(list[i+1:], list[i:])
	list[i] = r

	if m.retention > 0 {
		cutoff := list[len(list)-1].Timestamp.Add(-m.retention)
		drop := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(cutoff) })
		list = append([]SensorReading(nil), list[drop:]...)
	}
	m.readings[r.PlantID] = list
	return nil
}

func (m *Memory) ReadingsSince(ctx context.Context, plantID string, since time.Time) ([]SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.plants[plantID]; !ok {
		return nil, fmt.Errorf("plant %q: %w", plantID, ErrNotFound)
	}
	list := m.readings[plantID]
	start := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(since) })
	out := make([]SensorReading, len(list)-start)
	copy(out, list[start:])
	return out, nil
}

func (m *Memory) LatestReading(ctx context.Context, plantID string) (SensorReading, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.plants[plantID]; !ok {
		return SensorReading{}, false, fmt.Errorf("plant %q: %w", plantID, ErrNotFound)
	}
	list := m.readings[plantID]
	if len(list) == 0 {
		return SensorReading{}, false, nil
	}
	return list[len(list)-1], true, nil
}

func (m *Memory) ControlState(ctx context.Context, plantID string) (ControlState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.plants[plantID]; !ok {
		return ControlState{}, fmt.Errorf("plant %q: %w", plantID, ErrNotFound)
	}
	return m.controls[plantID], nil
}

func (m *Memory) SetControlState(ctx context.Context, plantID string, s ControlState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plants[plantID]; !ok {
		return fmt.Errorf("plant %q: %w", plantID, ErrNotFound)
	}
	m.controls[plantID] = s
	return nil
}

// maxNotifications bounds the in-memory notification list; the oldest are
// dropped first.
const maxNotifications = 1000

func (m *Memory) AddNotification(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plants[n.PlantID]; !ok {
		return fmt.Errorf("plant %q: %w", n.PlantID, ErrNotFound)
	}
	m.notes = append(m.notes, n)
	if over := len(m.notes) - maxNotifications; over > 0 {
		m.notes = append([]Notification(nil), m.notes[over:]...)
	}
	return nil
}

func (m *Memory) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Notification{}
	for i := len(m.notes) - 1; i >= 0; i-- {
		if unreadOnly && m.notes[i].Read {
			continue
		}
		out = append(out, m.notes[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notes {
		if m.notes[i].ID == id {
			m.notes[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %q: %w", id, ErrNotFound)
}

func (m *Memory) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i := range m.notes {
		if !m.notes[i].Read {
			m.notes[i].Read = true
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
