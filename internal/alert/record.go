package alert

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/plant-monitor/internal/store"
)

// NotificationStore keeps delivered alerts for the notification list.
type NotificationStore interface {
	AddNotification(ctx context.Context, n store.Notification) error
}

// Recorder delivers alerts through next and stores each delivered one as an
// unread notification.
type Recorder struct {
	next  Notifier
	store NotificationStore
}

// NewRecorder wraps next.
func NewRecorder(next Notifier, st NotificationStore) *Recorder {
	return &Recorder{next: next, store: st}
}

// PublishAlert returns only delivery errors. A failed store write is
// logged; returning it would make the scanner deliver the alert again.
func (r *Recorder) PublishAlert(a Alert) error {
	if err := r.next.PublishAlert(a); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.AddNotification(ctx, a.Notification()); err != nil {
		log.Printf("alert: store notification %s: %v", a.ID, err)
	}
	return nil
}

// Notification converts a to its stored form.
func (a Alert) Notification() store.Notification {
	return store.Notification{
		ID:        a.ID,
		PlantID:   a.PlantID,
		Severity:  string(a.Severity),
		Title:     a.Title,
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
}
