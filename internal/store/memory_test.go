package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func testPlants() []Plant {
	return []Plant{
		{ID: "fern", Name: "Hall Fern", DeviceID: "esp32-002", TargetMoisture: 60},
		{ID: "basil", Name: "Kitchen Basil", DeviceID: "esp32-001", TargetMoisture: 55},
	}
}

func TestMemoryPlantsSortedByID(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	plants, err := m.Plants(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plants) != 2 {
		t.Fatalf("expected 2 plants, got %d", len(plants))
	}
	if plants[0].ID != "basil" || plants[1].ID != "fern" {
		t.Errorf("expected [basil fern], got [%s %s]", plants[0].ID, plants[1].ID)
	}
}

func TestMemoryPlantLookup(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	p, err := m.Plant(ctx, "basil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Kitchen Basil" {
		t.Errorf("expected Kitchen Basil, got %q", p.Name)
	}

	p, err = m.PlantByDevice(ctx, "esp32-002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "fern" {
		t.Errorf("expected fern, got %q", p.ID)
	}

	if _, err := m.Plant(ctx, "cactus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.PlantByDevice(ctx, "esp32-999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTouchPlantOnlyMovesForward(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	if err := m.TouchPlant(ctx, "basil", t0.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.TouchPlant(ctx, "basil", t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := m.Plant(ctx, "basil")
	if !p.LastSeen.Equal(t0.Add(time.Hour)) {
		t.Errorf("expected LastSeen %v, got %v", t0.Add(time.Hour), p.LastSeen)
	}

	if err := m.TouchPlant(ctx, "cactus", t0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReadingsKeptInTimestampOrder(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	for _, h := range []int{2, 0, 3, 1} {
		r := SensorReading{PlantID: "basil", SoilMoisture: f(float64(h)), Timestamp: t0.Add(time.Duration(h) * time.Hour)}
		if err := m.AddReading(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := m.ReadingsSince(ctx, "basil", t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(got))
	}
	for i, r := range got {
		if *r.SoilMoisture != float64(i) {
			t.Errorf("reading %d: expected moisture %d, got %v", i, i, *r.SoilMoisture)
		}
	}

	latest, ok, err := m.LatestReading(ctx, "basil")
	if err != nil || !ok {
		t.Fatalf("expected latest reading, got ok=%v err=%v", ok, err)
	}
	if *latest.SoilMoisture != 3 {
		t.Errorf("expected latest moisture 3, got %v", *latest.SoilMoisture)
	}
}

func TestMemoryReadingsSinceFilters(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()
	for h := 0; h < 5; h++ {
		m.AddReading(ctx, SensorReading{PlantID: "basil", Timestamp: t0.Add(time.Duration(h) * time.Hour)})
	}

	got, _ := m.ReadingsSince(ctx, "basil", t0.Add(2*time.Hour))
	if len(got) != 3 {
		t.Fatalf("expected 3 readings at or after 2h, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("expected first reading at 2h, got %v", got[0].Timestamp)
	}

	// Returned slice must not alias internal state
	got[0].PlantID = "mutated"
	again, _ := m.ReadingsSince(ctx, "basil", t0.Add(2*time.Hour))
	if again[0].PlantID != "basil" {
		t.Error("ReadingsSince returned internal slice")
	}
}

func TestMemoryRetentionPrunesOldReadings(t *testing.T) {
	m := NewMemory(testPlants(), 24*time.Hour)
	ctx := context.Background()

	m.AddReading(ctx, SensorReading{PlantID: "basil", Timestamp: t0})
	m.AddReading(ctx, SensorReading{PlantID: "basil", Timestamp: t0.Add(12 * time.Hour)})
	m.AddReading(ctx, SensorReading{PlantID: "basil", Timestamp: t0.Add(30 * time.Hour)})

	got, _ := m.ReadingsSince(ctx, "basil", time.Time{})
	if len(got) != 2 {
		t.Fatalf("expected 2 readings after pruning, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(t0.Add(12 * time.Hour)) {
		t.Errorf("expected oldest kept reading at 12h, got %v", got[0].Timestamp)
	}
}

func TestMemoryUnknownPlantReadings(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	if err := m.AddReading(ctx, SensorReading{PlantID: "cactus", Timestamp: t0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddReading: expected ErrNotFound, got %v", err)
	}
	if _, err := m.ReadingsSince(ctx, "cactus", t0); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadingsSince: expected ErrNotFound, got %v", err)
	}
	if _, _, err := m.LatestReading(ctx, "cactus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestReading: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryLatestReadingEmpty(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	_, ok, err := m.LatestReading(context.Background(), "fern")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no latest reading")
	}
}

func TestMemoryControlState(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	s, err := m.ControlState(ctx, "basil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != (ControlState{}) {
		t.Errorf("expected zero state, got %+v", s)
	}

	want := ControlState{WaterPump: true, GrowLight: true, UpdatedAt: t0}
	if err := m.SetControlState(ctx, "basil", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := m.ControlState(ctx, "basil")
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if err := m.SetControlState(ctx, "cactus", want); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryNotifications(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()

	for i, id := range []string{"n1", "n2", "n3"} {
		n := Notification{ID: id, PlantID: "basil", Title: "Low Soil Moisture", CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := m.AddNotification(ctx, n); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := m.AddNotification(ctx, Notification{ID: "x", PlantID: "cactus"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown plant: expected ErrNotFound, got %v", err)
	}

	all, _ := m.Notifications(ctx, false, 0)
	if len(all) != 3 || all[0].ID != "n3" || all[2].ID != "n1" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	limited, _ := m.Notifications(ctx, false, 2)
	if len(limited) != 2 {
		t.Errorf("limit 2: got %d", len(limited))
	}

	if err := m.MarkNotificationRead(ctx, "n2"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := m.MarkNotificationRead(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	unread, _ := m.Notifications(ctx, true, 0)
	if len(unread) != 2 || unread[0].ID != "n3" || unread[1].ID != "n1" {
		t.Errorf("unread: got %+v", unread)
	}

	n, err := m.MarkAllNotificationsRead(ctx)
	if err != nil || n != 2 {
		t.Errorf("mark all: got %d, %v; want 2", n, err)
	}
	unread, _ = m.Notifications(ctx, true, 0)
	if len(unread) != 0 {
		t.Errorf("expected no unread, got %d", len(unread))
	}
}

func TestMemoryNotificationsBounded(t *testing.T) {
	m := NewMemory(testPlants(), 0)
	ctx := context.Background()
	for i := 0; i < maxNotifications+5; i++ {
		m.AddNotification(ctx, Notification{ID: string(rune('a' + i%26)), PlantID: "fern"})
	}
	all, _ := m.Notifications(ctx, false, 0)
	if len(all) != maxNotifications {
		t.Errorf("expected %d kept, got %d", maxNotifications, len(all))
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory(testPlants(), time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ts := t0.Add(time.Duration(i*100+j) * time.Second)
				m.AddReading(ctx, SensorReading{PlantID: "basil", Timestamp: ts})
				m.LatestReading(ctx, "basil")
				m.ReadingsSince(ctx, "basil", t0)
			}
		}(i)
	}
	wg.Wait()

	got, _ := m.ReadingsSince(ctx, "basil", t0)
	if len(got) != 1000 {
		t.Errorf("expected 1000 readings, got %d", len(got))
	}
}
