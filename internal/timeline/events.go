package timeline

import (
	"context"
	"slices"
)

// ManualEvent is a user-authored event.
type ManualEvent struct {
	VisaID string
	Title  string
	Type   EventType
	DateFields
	Notes string
	Meta  map[string]any
}

type newEvent struct {
	visaID    string
	typ       EventType
	title     string
	notes     string
	meta      map[string]any
	dates     DateFields
	tentative bool
	source    Source
	sourceURL string
	confirmed bool
	by        Actor
}

func coerceType(t EventType) EventType {
	if slices.Contains(EventTypes, t) {
		return t
	}
	return EventOther
}

// addEvent prepends a new event to tx and schedules its reminders.
func (tx *txn) addEvent(args newEvent) string {
	dates := args.dates
	ev := VisaEvent{
		ID:         newID("evt"),
		VisaID:     args.visaID,
		Type:       coerceType(args.typ),
		Title:      args.title,
		Notes:      args.notes,
		Meta:       args.meta,
		DateFields: args.dates,
		Tentative:  args.tentative,
		Source:     args.source,
		SourceURL:  args.sourceURL,
		Status:     ComputeStatus(args.dates.Effective(), tx.today),
		CreatedAt:  tx.now,
		UpdatedAt:  tx.now,
		History:    []ChangeRecord{dateRecord(tx.now, args.by, ActionCreated, nil, &dates)},
	}
	if args.confirmed {
		ev.appendRecord(newRecord(tx.now, args.by, ActionConfirmed))
	}
	tx.schedule(&ev)

	tx.st.Events = append([]VisaEvent{ev}, tx.st.Events...)
	return ev.ID
}

// AddManualEvent records a confirmed, non-tentative event authored by the
// user and schedules its reminders when it has a date. It returns an empty
// id without changing anything when the case does not exist.
func (s *Store) AddManualEvent(ctx context.Context, m ManualEvent) (string, error) {
	var id string
	err := s.update(ctx, "add_manual_event", func(tx *txn) (bool, error) {
		if tx.st.caseIndex(m.VisaID) < 0 {
			return false, nil
		}
		id = tx.addEvent(newEvent{
			visaID:    m.VisaID,
			typ:       m.Type,
			title:     m.Title,
			notes:     m.Notes,
			meta:      m.Meta,
			dates:     m.DateFields,
			source:    SourceManual,
			confirmed: true,
			by:        ActorUser,
		})
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// EditEventDate replaces the event's dates. Every registered reminder is
// cancelled before the schedule is rebuilt from the new date. A completed
// event keeps its status.
func (s *Store) EditEventDate(ctx context.Context, eventID string, dates DateFields) error {
	return s.update(ctx, "edit_event_date", func(tx *txn) (bool, error) {
		i := tx.st.eventIndex(eventID)
		if i < 0 {
			return false, nil
		}
		ev := tx.st.Events[i]
		from := ev.DateFields
		to := dates

		tx.cancel(ev.Reminders)

		ev.DateFields = dates
		ev.Tentative = false
		ev.UserEdited = true
		ev.UpdatedAt = tx.now
		if ev.Status != StatusCompleted {
			ev.Status = ComputeStatus(dates.Effective(), tx.today)
		}
		tx.schedule(&ev)
		ev.appendRecord(dateRecord(tx.now, ActorUser, ActionEditedDate, &from, &to))

		tx.st.Events[i] = ev
		return true, nil
	})
}

// MarkEventCompleted moves the event to its terminal status. Scheduled
// reminders stay registered.
func (s *Store) MarkEventCompleted(ctx context.Context, eventID string) error {
	return s.update(ctx, "mark_event_completed", func(tx *txn) (bool, error) {
		i := tx.st.eventIndex(eventID)
		if i < 0 {
			return false, nil
		}
		ev := &tx.st.Events[i]
		ev.Status = StatusCompleted
		ev.UpdatedAt = tx.now
		ev.appendRecord(newRecord(tx.now, ActorUser, ActionMarkedCompleted))
		return true, nil
	})
}

// DeleteEvent cancels the event's reminders and removes it.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	return s.update(ctx, "delete_event", func(tx *txn) (bool, error) {
		i := tx.st.eventIndex(eventID)
		if i < 0 {
			return false, nil
		}
		tx.cancel(tx.st.Events[i].Reminders)
		tx.st.Events = slices.Delete(tx.st.Events, i, i+1)
		return true, nil
	})
}

// RefreshStatuses recomputes upcoming/overdue for events that are not
// completed, as calendar days pass. Nothing is persisted when no status
// changes. Status drift is not a history transition.
func (s *Store) RefreshStatuses(ctx context.Context) (int, error) {
	var changed int
	err := s.update(ctx, "refresh_statuses", func(tx *txn) (bool, error) {
		for i := range tx.st.Events {
			ev := &tx.st.Events[i]
			if ev.Status == StatusCompleted {
				continue
			}
			if next := ComputeStatus(ev.Effective(), tx.today); next != ev.Status {
				ev.Status = next
				changed++
			}
		}
		return changed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Event returns the event with the given id.
func (s *Store) Event(id string) (VisaEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.state.eventIndex(id); i >= 0 {
		return s.state.Events[i].clone(), true
	}
	return VisaEvent{}, false
}

// EventsForCase returns the case's events sorted by effective date; events
// without a date sort last.
func (s *Store) EventsForCase(caseID string) []VisaEvent {
	var out []VisaEvent
	for _, ev := range s.State().Events {
		if ev.VisaID == caseID {
			out = append(out, ev)
		}
	}
	SortByDate(out)
	return out
}

// SortByDate orders events by effective date, undated last, stable
// otherwise.
func SortByDate(events []VisaEvent) {
	slices.SortStableFunc(events, func(a, b VisaEvent) int {
		da, db := a.Effective(), b.Effective()
		switch {
		case da == db:
			return 0
		case da == "":
			return 1
		case db == "":
			return -1
		case da < db:
			return -1
		default:
			return 1
		}
	})
}
