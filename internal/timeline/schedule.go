package timeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/notexe/visa-timeline/internal/metrics"
	"github.com/notexe/visa-timeline/internal/notify"
)

// DefaultOffsets are the days before an event at which reminders fire.
var DefaultOffsets = []int{14, 7, 3, 1, 0}

// DefaultReminderHour is the local hour reminders fire at.
const DefaultReminderHour = 9

// Notifier registers and cancels platform notifications.
type Notifier interface {
	Schedule(ctx context.Context, n notify.Notification) (string, error)
	Cancel(ctx context.Context, id string) error
}

// PriorityForOffset maps an offset to its reminder priority.
func PriorityForOffset(offset int) Priority {
	if offset >= 14 {
		return PriorityLow
	}
	if offset >= 7 {
		return PriorityMedium
	}
	return PriorityHigh
}

// ReminderBody is the notification text for one offset.
func ReminderBody(title string, offset int) string {
	if offset == 0 {
		return title
	}
	return fmt.Sprintf("%s (D-%d)", title, offset)
}

type scheduler struct {
	notifier Notifier
	offsets  []int
	hour     int
	loc      *time.Location
	appName  string
}

// build computes the reminder list for ev from its effective date. Fire times
// at or before now are recorded without registering a notification.
// Registration failures are logged and leave the handle empty.
func (s *scheduler) build(ctx context.Context, ev *VisaEvent, now time.Time) []Reminder {
	out := []Reminder{}
	if ev.Tentative {
		return out
	}
	day, ok := ParseDate(ev.Effective(), s.hour, s.loc)
	if !ok {
		return out
	}

	for _, off := range s.offsets {
		fire := day.AddDate(0, 0, -off)
		r := Reminder{
			OffsetDays:  off,
			FireDateISO: FormatDate(fire),
			Priority:    PriorityForOffset(off),
		}
		if !fire.After(now) {
			metrics.Reminders.WithLabelValues("past").Inc()
			out = append(out, r)
			continue
		}
		if s.notifier == nil {
			metrics.Reminders.WithLabelValues("unregistered").Inc()
			out = append(out, r)
			continue
		}

		id, err := s.notifier.Schedule(ctx, notify.Notification{
			EventID:  ev.ID,
			Title:    s.appName,
			Body:     ReminderBody(ev.Title, off),
			Priority: string(r.Priority),
			FireAt:   fire,
		})
		if err != nil {
			log.Printf("[timeline] Warning: failed to schedule reminder D-%d for %s: %v", off, ev.ID, err)
			metrics.Reminders.WithLabelValues("failed").Inc()
		} else {
			r.NotificationID = id
			metrics.Reminders.WithLabelValues("registered").Inc()
		}
		out = append(out, r)
	}
	return out
}

// cancel drops every registered handle. Failures are logged and swallowed.
func (s *scheduler) cancel(ctx context.Context, reminders []Reminder) {
	if s.notifier == nil {
		return
	}
	for _, r := range reminders {
		if r.NotificationID == "" {
			continue
		}
		if err := s.notifier.Cancel(ctx, r.NotificationID); err != nil {
			log.Printf("[timeline] Warning: failed to cancel notification %s: %v", r.NotificationID, err)
			metrics.Cancellations.WithLabelValues("failed").Inc()
			continue
		}
		metrics.Cancellations.WithLabelValues("ok").Inc()
	}
}
