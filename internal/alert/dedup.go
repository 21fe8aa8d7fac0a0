package alert

import (
	"sync"
	"time"
)

// DedupWindow is how long an alert suppresses repeats of itself.
const DedupWindow = time.Hour

type dedupKey struct {
	plantID string
	title   string
}

// Deduper remembers when each (plant, title) alert was last raised.
// It is safe for concurrent use.
type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	last   map[dedupKey]time.Time
}

// NewDeduper creates a Deduper that suppresses repeats within window.
func NewDeduper(window time.Duration) *Deduper {
	return &Deduper{
		window: window,
		last:   make(map[dedupKey]time.Time),
	}
}

// Recent reports whether a matching alert was recorded within the window
// ending at now. The window is inclusive.
func (d *Deduper) Recent(a Alert, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.last[dedupKey{a.PlantID, a.Title}]
	return ok && !t.Before(now.Add(-d.window))
}

// Record marks a as raised at its CreatedAt time and forgets entries that
// have aged out.
func (d *Deduper) Record(a Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := a.CreatedAt.Add(-d.window)
	for k, t := range d.last {
		if t.Before(cutoff) {
			delete(d.last, k)
		}
	}
	d.last[dedupKey{a.PlantID, a.Title}] = a.CreatedAt
}

// Len returns the number of remembered alerts.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}
