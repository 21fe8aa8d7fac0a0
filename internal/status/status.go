// Package status provides a thread-safe status tracker for the plant-monitor
// daemon. It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	ScanMs      int64
	Broker      string
	HTTPPort    string
	Store       string // "memory" or "clickhouse"
	RelayPlant  string // plant wired to local GPIO relays, empty if none
}

// Counts are totals since startup.
type Counts struct {
	Readings   int
	Rejected   int
	Heartbeats int
	Alerts     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Plants        int
	Counts        Counts
	LastReading   time.Time // zero if nothing ingested yet
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetPlants sets the number of registered plants.
func (t *Tracker) SetPlants(n int) {
	t.mu.Lock()
	t.snap.Plants = n
	t.mu.Unlock()
}

// RecordReading counts an accepted reading received at at.
func (t *Tracker) RecordReading(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Readings++
	if at.After(t.snap.LastReading) {
		t.snap.LastReading = at
	}
	t.mu.Unlock()
}

// RecordRejected counts a reading that failed validation or came from an
// unknown device.
func (t *Tracker) RecordRejected() {
	t.mu.Lock()
	t.snap.Counts.Rejected++
	t.mu.Unlock()
}

// RecordHeartbeat counts a device heartbeat.
func (t *Tracker) RecordHeartbeat() {
	t.mu.Lock()
	t.snap.Counts.Heartbeats++
	t.mu.Unlock()
}

// RecordAlerts adds n delivered alerts.
func (t *Tracker) RecordAlerts(n int) {
	t.mu.Lock()
	t.snap.Counts.Alerts += n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
