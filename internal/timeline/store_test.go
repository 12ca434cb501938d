package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/notexe/visa-timeline/internal/notify"
	"github.com/notexe/visa-timeline/internal/storage"
)

var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu           sync.Mutex
	seq          int
	active       map[string]notify.Notification
	cancelled    []string
	failSchedule error
	failCancel   error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{active: make(map[string]notify.Notification)}
}

func (f *fakeNotifier) Schedule(_ context.Context, n notify.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSchedule != nil {
		return "", f.failSchedule
	}
	f.seq++
	id := fmt.Sprintf("n%d", f.seq)
	f.active[id] = n
	return id, nil
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	if f.failCancel != nil {
		return f.failCancel
	}
	delete(f.active, id)
	return nil
}

type failingBackend struct {
	storage.Backend
	fail bool
}

func (b *failingBackend) Save(ctx context.Context, key string, data []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, key, data)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *Store
	notifier *fakeNotifier
	backend  *failingBackend
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		notifier: newFakeNotifier(),
		backend:  &failingBackend{Backend: storage.NewMemory()},
		clock:    &clock{now: testNow},
	}
	f.store = f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), f.backend,
		WithNotifier(f.notifier),
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
	)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

func daysFromNow(n int) string {
	return FormatDate(testNow.AddDate(0, 0, n))
}

func mustCase(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.UpsertCase(context.Background(), "France", "tourist", "", "")
	if err != nil {
		t.Fatalf("failed to upsert case: %v", err)
	}
	return id
}

func mustEvent(t *testing.T, s *Store, caseID, date string) VisaEvent {
	t.Helper()
	id, err := s.AddManualEvent(context.Background(), ManualEvent{
		VisaID:     caseID,
		Title:      "Biometrics appointment",
		Type:       EventBiometrics,
		DateFields: DateFields{DateISO: date},
	})
	if err != nil {
		t.Fatalf("failed to add event: %v", err)
	}
	ev, ok := s.Event(id)
	if !ok {
		t.Fatalf("event %s not found", id)
	}
	return ev
}

func TestOpen_EmptyBackend(t *testing.T) {
	f := newFixture(t)
	st := f.store.State()
	if len(st.Visas) != 0 || len(st.Events) != 0 || len(st.Pending) != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if !st.Settings.SilentMode {
		t.Error("expected silent mode to default to true")
	}
}

func TestUpsertCase_SameKeyReturnsSameID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.store.UpsertCase(ctx, " France ", "tourist", "", StageResearch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.store.UpsertCase(ctx, "FRANCE", " Tourist ", "holiday", StageApplication)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected same id, got %s and %s", first, second)
	}

	cases := f.store.Cases()
	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.Country != "france" || c.VisaType != "tourist" {
		t.Errorf("unexpected normalized key %q/%q", c.Country, c.VisaType)
	}
	if c.Objective != "holiday" || c.Stage != StageApplication {
		t.Errorf("expected merged optional fields, got %+v", c)
	}
}

func TestUpsertCase_EmptyValuesBecomeUnknown(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.UpsertCase(context.Background(), "  ", "", "", "")
	if err != nil || id == "" {
		t.Fatalf("expected usable id, got %q, %v", id, err)
	}
	c, _ := f.store.Case(id)
	if c.Country != "unknown" || c.VisaType != "unknown" {
		t.Errorf("expected unknown placeholders, got %+v", c)
	}
}

func TestUpsertCase_KeepsOptionalFieldsWhenOmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, _ := f.store.UpsertCase(ctx, "uk", "student", "masters", StageWaiting)
	f.store.UpsertCase(ctx, "uk", "student", "", "")
	c, _ := f.store.Case(id)
	if c.Objective != "masters" || c.Stage != StageWaiting {
		t.Errorf("expected optional fields kept, got %+v", c)
	}
}

func TestAddManualEvent_ScenarioA(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(10))

	if ev.Source != SourceManual || ev.Tentative || ev.Status != StatusUpcoming {
		t.Errorf("unexpected event flags %+v", ev)
	}
	if len(ev.History) != 2 || ev.History[0].Action != ActionCreated || ev.History[1].Action != ActionConfirmed {
		t.Errorf("expected created+confirmed history, got %+v", ev.History)
	}
	if ev.History[0].Actor != ActorUser {
		t.Errorf("expected user actor, got %s", ev.History[0].Actor)
	}

	if len(ev.Reminders) != len(DefaultOffsets) {
		t.Fatalf("expected %d reminders, got %d", len(DefaultOffsets), len(ev.Reminders))
	}
	for _, r := range ev.Reminders {
		want := FormatDate(testNow.AddDate(0, 0, 10-r.OffsetDays))
		if r.FireDateISO != want {
			t.Errorf("offset %d: expected fire date %s, got %s", r.OffsetDays, want, r.FireDateISO)
		}
		if r.Priority != PriorityForOffset(r.OffsetDays) {
			t.Errorf("offset %d: unexpected priority %s", r.OffsetDays, r.Priority)
		}
		registered := r.NotificationID != ""
		if r.OffsetDays == 14 && registered {
			t.Errorf("offset 14 is already past and must not be registered")
		}
		if r.OffsetDays != 14 && !registered {
			t.Errorf("offset %d should be registered", r.OffsetDays)
		}
	}
	if len(f.notifier.active) != 4 {
		t.Errorf("expected 4 registered notifications, got %d", len(f.notifier.active))
	}
}

func TestAddManualEvent_PastDateIsOverdueWithoutHandles(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(-3))

	if ev.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", ev.Status)
	}
	if len(ev.Reminders) != 5 {
		t.Fatalf("expected reminders recorded for display, got %d", len(ev.Reminders))
	}
	for _, r := range ev.Reminders {
		if r.NotificationID != "" {
			t.Errorf("offset %d should not be registered", r.OffsetDays)
		}
	}
}

func TestAddManualEvent_NoDateNoReminders(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	id, _ := f.store.AddManualEvent(context.Background(), ManualEvent{VisaID: caseID, Title: "Gather documents", Type: EventOther})
	ev, _ := f.store.Event(id)
	if len(ev.Reminders) != 0 || ev.Status != StatusUpcoming {
		t.Errorf("expected upcoming event without reminders, got %+v", ev)
	}
}

func TestAddManualEvent_RangeAttachesToStart(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	id, _ := f.store.AddManualEvent(context.Background(), ManualEvent{
		VisaID:     caseID,
		Title:      "Visa valid",
		Type:       EventVisaValidity,
		DateFields: DateFields{StartDateISO: daysFromNow(20), EndDateISO: daysFromNow(110)},
	})
	ev, _ := f.store.Event(id)
	if got := ev.Reminders[len(ev.Reminders)-1].FireDateISO; got != daysFromNow(20) {
		t.Errorf("expected D-0 on range start, got %s", got)
	}
}

func TestAddManualEvent_UnknownCaseIsNoop(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.AddManualEvent(context.Background(), ManualEvent{VisaID: "visa_missing", Title: "x", Type: EventPayment})
	if err != nil || id != "" {
		t.Fatalf("expected no-op, got %q, %v", id, err)
	}
	if len(f.store.State().Events) != 0 {
		t.Error("expected no events")
	}
}

func TestAddManualEvent_UnknownTypeBecomesOther(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	id, _ := f.store.AddManualEvent(context.Background(), ManualEvent{VisaID: caseID, Title: "x", Type: "party"})
	ev, _ := f.store.Event(id)
	if ev.Type != EventOther {
		t.Errorf("expected other, got %s", ev.Type)
	}
}

func TestScheduleFailureKeepsEvent(t *testing.T) {
	f := newFixture(t)
	f.notifier.failSchedule = errors.New("permission denied")
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(30))

	if len(ev.Reminders) != 5 {
		t.Fatalf("expected 5 reminders, got %d", len(ev.Reminders))
	}
	for _, r := range ev.Reminders {
		if r.NotificationID != "" {
			t.Errorf("expected absent handle after failure, got %s", r.NotificationID)
		}
	}
}

func TestEditEventDate_ScenarioC(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(30))

	old := map[string]bool{}
	for _, r := range ev.Reminders {
		if r.NotificationID == "" {
			t.Fatalf("expected 5 active handles before edit")
		}
		old[r.NotificationID] = true
	}

	newDate := DateFields{DateISO: daysFromNow(40)}
	if err := f.store.EditEventDate(ctx, ev.ID, newDate); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if len(f.notifier.cancelled) != 5 {
		t.Fatalf("expected 5 cancellations, got %d", len(f.notifier.cancelled))
	}
	for _, id := range f.notifier.cancelled {
		if !old[id] {
			t.Errorf("cancelled unexpected handle %s", id)
		}
	}
	for id := range old {
		if _, ok := f.notifier.active[id]; ok {
			t.Errorf("stale handle %s still registered", id)
		}
	}

	edited, _ := f.store.Event(ev.ID)
	if !edited.UserEdited || edited.DateISO != newDate.DateISO {
		t.Errorf("expected edited date, got %+v", edited.DateFields)
	}
	for _, r := range edited.Reminders {
		if old[r.NotificationID] || r.NotificationID == "" {
			t.Errorf("expected fresh handle for offset %d, got %q", r.OffsetDays, r.NotificationID)
		}
	}
	last := edited.History[len(edited.History)-1]
	if last.Action != ActionEditedDate || last.From.DateISO != ev.DateISO || last.To.DateISO != newDate.DateISO {
		t.Errorf("unexpected history record %+v", last)
	}
}

func TestEditEventDate_CancelFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(30))
	f.notifier.failCancel = errors.New("gone")

	if err := f.store.EditEventDate(context.Background(), ev.ID, DateFields{DateISO: daysFromNow(-1)}); err != nil {
		t.Fatalf("edit should not fail on cancel errors: %v", err)
	}
	edited, _ := f.store.Event(ev.ID)
	if edited.Status != StatusOverdue {
		t.Errorf("expected overdue after moving date to the past, got %s", edited.Status)
	}
}

func TestEditEventDate_CompletedStaysCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(5))
	f.store.MarkEventCompleted(ctx, ev.ID)
	f.store.EditEventDate(ctx, ev.ID, DateFields{DateISO: daysFromNow(-5)})

	got, _ := f.store.Event(ev.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed to be terminal, got %s", got.Status)
	}
}

func TestMarkEventCompleted_KeepsReminders(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(30))

	if err := f.store.MarkEventCompleted(context.Background(), ev.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := f.store.Event(ev.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.History[len(got.History)-1].Action != ActionMarkedCompleted {
		t.Errorf("expected marked_completed record")
	}
	if len(f.notifier.cancelled) != 0 || len(f.notifier.active) != 5 {
		t.Errorf("expected reminders untouched, cancelled=%d active=%d", len(f.notifier.cancelled), len(f.notifier.active))
	}
}

func TestDeleteEvent_CancelsAllHandles(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(30))

	if err := f.store.DeleteEvent(context.Background(), ev.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.Event(ev.ID); ok {
		t.Error("expected event removed")
	}
	if len(f.notifier.active) != 0 {
		t.Errorf("expected no active notifications, got %d", len(f.notifier.active))
	}
	if _, ok := f.store.Case(caseID); !ok {
		t.Error("case must survive event deletion")
	}
}

func TestMissingIdentifiersAreNoops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before, _ := Encode(f.store.State())

	if err := f.store.EditEventDate(ctx, "evt_missing", DateFields{DateISO: "2026-01-01"}); err != nil {
		t.Error(err)
	}
	if err := f.store.MarkEventCompleted(ctx, "evt_missing"); err != nil {
		t.Error(err)
	}
	if err := f.store.DeleteEvent(ctx, "evt_missing"); err != nil {
		t.Error(err)
	}
	if err := f.store.ResolvePendingDetection(ctx, "det_missing", ActionSave, nil); err != nil {
		t.Error(err)
	}
	if err := f.store.ToggleProcedureStep(ctx, "visa_missing", "step"); err != nil {
		t.Error(err)
	}

	after, _ := Encode(f.store.State())
	if string(before) != string(after) {
		t.Errorf("expected state untouched")
	}
}

func TestPersistFailureLeavesStateAndCancelsNewHandles(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	f.backend.fail = true

	_, err := f.store.AddManualEvent(context.Background(), ManualEvent{
		VisaID:     caseID,
		Title:      "Payment",
		Type:       EventPayment,
		DateFields: DateFields{DateISO: daysFromNow(30)},
	})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if len(f.store.State().Events) != 0 {
		t.Error("expected in-memory state untouched")
	}
	if len(f.notifier.active) != 0 {
		t.Errorf("expected registered handles rolled back, got %d active", len(f.notifier.active))
	}
}

func TestReopenRestoresState(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(10))
	f.store.SetSilentMode(context.Background(), false)

	reopened := f.open(t)
	got, ok := reopened.Event(ev.ID)
	if !ok || got.DateISO != ev.DateISO || len(got.Reminders) != 5 {
		t.Fatalf("expected event restored, got %+v", got)
	}
	if reopened.SilentMode() {
		t.Error("expected silent mode false after reopen")
	}
}

func TestToggleProcedureStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)

	f.store.ToggleProcedureStep(ctx, caseID, "passport")
	f.store.ToggleProcedureStep(ctx, caseID, " photos ")
	if got := f.store.CompletedSteps(caseID); len(got) != 2 || got[0] != "passport" || got[1] != "photos" {
		t.Fatalf("unexpected steps %v", got)
	}

	f.store.ToggleProcedureStep(ctx, caseID, "passport")
	if got := f.store.CompletedSteps(caseID); len(got) != 1 || got[0] != "photos" {
		t.Fatalf("expected passport untoggled, got %v", got)
	}

	f.store.ToggleProcedureStep(ctx, caseID, "")
	if got := f.store.CompletedSteps(caseID); len(got) != 1 {
		t.Errorf("empty step id must be ignored, got %v", got)
	}
}

func TestRefreshStatuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	soon := mustEvent(t, f.store, caseID, daysFromNow(1))
	done := mustEvent(t, f.store, caseID, daysFromNow(1))
	f.store.MarkEventCompleted(ctx, done.ID)

	if n, err := f.store.RefreshStatuses(ctx); err != nil || n != 0 {
		t.Fatalf("expected no change yet, got %d, %v", n, err)
	}

	f.clock.Advance(72 * time.Hour)
	n, err := f.store.RefreshStatuses(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one status change, got %d, %v", n, err)
	}
	got, _ := f.store.Event(soon.ID)
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}
	got, _ = f.store.Event(done.ID)
	if got.Status != StatusCompleted {
		t.Errorf("completed must stay completed, got %s", got.Status)
	}
}

func TestEventsForCase_SortedByDate(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	other, _ := f.store.UpsertCase(context.Background(), "canada", "work", "", "")
	mustEvent(t, f.store, caseID, daysFromNow(9))
	mustEvent(t, f.store, caseID, daysFromNow(2))
	mustEvent(t, f.store, other, daysFromNow(1))
	f.store.AddManualEvent(context.Background(), ManualEvent{VisaID: caseID, Title: "undated", Type: EventOther})

	events := f.store.EventsForCase(caseID)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].DateISO != daysFromNow(2) || events[1].DateISO != daysFromNow(9) || events[2].Effective() != "" {
		t.Errorf("unexpected order: %s, %s, %q", events[0].DateISO, events[1].DateISO, events[2].Effective())
	}
}

func TestStateIsACopy(t *testing.T) {
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(10))

	st := f.store.State()
	st.Events[0].Title = "mutated"
	st.Events[0].Reminders[0].NotificationID = "x"

	got, _ := f.store.Event(ev.ID)
	if got.Title == "mutated" || got.Reminders[0].NotificationID == "x" {
		t.Error("external mutation leaked into the store")
	}
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.store.AddPendingDetection(ctx, Detection{VisaID: caseID, Type: EventDeadline, Title: fmt.Sprintf("d%d", i)})
		}(i)
	}
	wg.Wait()

	if got := len(f.store.Pending()); got != 20 {
		t.Errorf("expected 20 pending detections, got %d", got)
	}
}
