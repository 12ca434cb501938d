// Package timeline owns the visa cases, their dated events, detections
// awaiting confirmation and the reminder schedule derived from them.
//
// All mutations go through Store, which serializes them: each operation
// reads the current aggregate, computes the next one on a copy, persists it
// as one blob and only then replaces the in-memory state.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notexe/visa-timeline/internal/metrics"
	"github.com/notexe/visa-timeline/internal/storage"
)

// Store is the single writer of the timeline aggregate.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	key     string
	state   *State
	sched   *scheduler
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets where reminders are registered. Without one, reminders
// are recorded but never registered.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.sched.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone used for calendar days and fire times.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.sched.loc = loc
		}
	}
}

// WithReminderHour sets the local hour reminders fire at.
func WithReminderHour(hour int) Option {
	return func(s *Store) { s.sched.hour = hour }
}

// WithAppName sets the notification title.
func WithAppName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.sched.appName = name
		}
	}
}

// WithStorageKey overrides StorageKey.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// Open loads the aggregate from backend. A missing snapshot yields an
// empty timeline.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		key:     StorageKey,
		now:     time.Now,
		sched: &scheduler{
			offsets: DefaultOffsets,
			hour:    DefaultReminderHour,
			loc:     time.Local,
			appName: "Visa Timeline",
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := backend.Load(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.state = NewState()
	case err != nil:
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	default:
		st, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode timeline: %w", err)
		}
		s.state = st
	}
	metrics.PendingDetections.Set(float64(len(s.state.Pending)))
	return s, nil
}

// State returns a deep copy of the current aggregate.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Today is the current local calendar day.
func (s *Store) Today() string {
	return Today(s.now(), s.sched.loc)
}

// Location is the zone calendar days are computed in.
func (s *Store) Location() *time.Location {
	return s.sched.loc
}

// txn is the working copy of one mutation.
type txn struct {
	ctx        context.Context
	st         *State
	now        time.Time
	today      string
	sched      *scheduler
	registered []Reminder
}

// schedule builds ev's reminders and remembers the handles it registered.
func (tx *txn) schedule(ev *VisaEvent) {
	ev.Reminders = tx.sched.build(tx.ctx, ev, tx.now)
	tx.registered = append(tx.registered, ev.Reminders...)
}

func (tx *txn) cancel(reminders []Reminder) {
	tx.sched.cancel(tx.ctx, reminders)
}

// update runs fn on a copy of the aggregate. When fn reports a change, the
// copy is persisted and becomes current. If persisting fails, handles
// registered during fn are cancelled and the previous state stays.
func (s *Store) update(ctx context.Context, op string, fn func(tx *txn) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	tx := &txn{
		ctx:   ctx,
		st:    s.state.Clone(),
		now:   now,
		today: Today(now, s.sched.loc),
		sched: s.sched,
	}

	changed, err := fn(tx)
	if err != nil {
		metrics.Mutations.WithLabelValues(op, "error").Inc()
		return err
	}
	if !changed {
		metrics.Mutations.WithLabelValues(op, "noop").Inc()
		return nil
	}

	data, err := Encode(tx.st)
	if err == nil {
		err = s.backend.Save(ctx, s.key, data)
	}
	if err != nil {
		log.Printf("[timeline] Error: %s not persisted: %v", op, err)
		s.sched.cancel(context.WithoutCancel(ctx), tx.registered)
		metrics.Mutations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("failed to persist timeline: %w", err)
	}

	s.state = tx.st
	metrics.Mutations.WithLabelValues(op, "ok").Inc()
	metrics.PendingDetections.Set(float64(len(s.state.Pending)))
	return nil
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// SetSilentMode updates the global silent-mode switch.
func (s *Store) SetSilentMode(ctx context.Context, enabled bool) error {
	return s.update(ctx, "set_silent_mode", func(tx *txn) (bool, error) {
		tx.st.Settings.SilentMode = enabled
		return true, nil
	})
}

// SilentMode reports the current silent-mode switch.
func (s *Store) SilentMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings.SilentMode
}
