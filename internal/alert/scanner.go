package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sweeney/plant-monitor/internal/store"
)

// Source is the part of store.Store the scanner reads.
type Source interface {
	Plants(ctx context.Context) ([]store.Plant, error)
	LatestReading(ctx context.Context, plantID string) (store.SensorReading, bool, error)
}

// Notifier delivers an alert. mqtt.Publisher satisfies it.
type Notifier interface {
	PublishAlert(a Alert) error
}

// Scanner checks every plant's latest reading and notifies new alerts.
type Scanner struct {
	source   Source
	notifier Notifier
	dedup    *Deduper
	now      func() time.Time
}

// NewScanner creates a Scanner with a one-hour de-duplication window.
func NewScanner(source Source, notifier Notifier) *Scanner {
	return &Scanner{
		source:   source,
		notifier: notifier,
		dedup:    NewDeduper(DedupWindow),
		now:      time.Now,
	}
}

// Scan evaluates all plants once and returns the alerts it delivered.
// A failure on one plant is logged and the scan moves on; only failing to
// list plants is returned as an error.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]Alert, error) {
	plants, err := s.source.Plants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}

	var raised []Alert
	for _, p := range plants {
		r, ok, err := s.source.LatestReading(ctx, p.ID)
		if err != nil {
			log.Printf("alert: latest reading for %s: %v", p.ID, err)
			continue
		}
		if !ok {
			continue
		}

		for _, a := range Evaluate(p, r, now) {
			if s.dedup.Recent(a, now) {
				continue
			}
			if err := s.notifier.PublishAlert(a); err != nil {
				// Not recorded, so the next scan retries it.
				log.Printf("alert: notify %s %q: %v", p.ID, a.Title, err)
				continue
			}
			s.dedup.Record(a)
			raised = append(raised, a)
		}
	}
	return raised, nil
}

// Run scans every interval until ctx is cancelled. The first scan runs
// immediately.
func (s *Scanner) Run(ctx context.Context, every time.Duration) error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(every).Do(func() {
		alerts, err := s.Scan(ctx, s.now())
		if err != nil {
			log.Printf("alert: scan failed: %v", err)
			return
		}
		if len(alerts) > 0 {
			log.Printf("alert: raised %d alerts", len(alerts))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule alert scan: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}
