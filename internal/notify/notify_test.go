package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestQueue(t *testing.T, now time.Time) *Queue {
	t.Helper()
	q, err := NewQueue(filepath.Join(t.TempDir(), "notify.db"))
	if err != nil {
		t.Fatalf("failed to open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	q.now = func() time.Time { return now }
	return q
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestQueue_ScheduleAndCancel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	q := newTestQueue(t, now)

	id, err := q.Schedule(ctx, Notification{Title: "Visa Timeline", Body: "Biometrics (D-3)", FireAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("failed to schedule: %v", err)
	}
	if !strings.HasPrefix(id, "ntf_") {
		t.Errorf("unexpected id %q", id)
	}

	if err := q.Cancel(ctx, id); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	n, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if n.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", n.Status)
	}

	if err := q.Cancel(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second cancel, got %v", err)
	}
}

func TestQueue_CorruptTimestampIsLogged(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	q := newTestQueue(t, now)

	id, err := q.Schedule(ctx, Notification{Title: "Visa Timeline", Body: "Payment", FireAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.db.ExecContext(ctx, `UPDATE notifications SET fire_at = 'tomorrow' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	n, err := q.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !n.FireAt.IsZero() {
		t.Errorf("expected zero fire time, got %v", n.FireAt)
	}
	if !strings.Contains(buf.String(), "[notify] Warning: notification "+id+" has an invalid fire_at \"tomorrow\"") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}

func TestQueue_DueOnlyReturnsPendingPastFireTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := newTestQueue(t, now)

	past, _ := q.Schedule(ctx, Notification{Title: "a", FireAt: now.Add(-time.Minute)})
	q.Schedule(ctx, Notification{Title: "b", FireAt: now.Add(time.Minute)})
	cancelled, _ := q.Schedule(ctx, Notification{Title: "c", FireAt: now.Add(-time.Hour)})
	q.Cancel(ctx, cancelled)

	due, err := q.Due(ctx)
	if err != nil {
		t.Fatalf("failed to get due: %v", err)
	}
	if len(due) != 1 || due[0].ID != past {
		t.Fatalf("expected only %s due, got %+v", past, due)
	}
}

func TestDispatcher_TickDeliversAndMarks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := newTestQueue(t, now)
	id, _ := q.Schedule(ctx, Notification{Title: "Visa Timeline", Body: "Appointment", FireAt: now})

	sender := &recordingSender{}
	d := NewDispatcher(q, sender, time.Minute)

	n, err := d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if n != 1 || len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %d (sent %d)", n, len(sender.sent))
	}

	got, _ := q.Get(ctx, id)
	if got.Status != StatusDelivered {
		t.Errorf("expected delivered, got %s", got.Status)
	}

	n, _ = d.Tick(ctx)
	if n != 0 {
		t.Errorf("expected nothing left to deliver, got %d", n)
	}
}

func TestDispatcher_FailedSendStaysPending(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := newTestQueue(t, now)
	id, _ := q.Schedule(ctx, Notification{Title: "x", FireAt: now})

	d := NewDispatcher(q, &recordingSender{err: errors.New("offline")}, time.Minute)
	if n, err := d.Tick(ctx); err != nil || n != 0 {
		t.Fatalf("expected 0 deliveries without error, got %d, %v", n, err)
	}
	got, _ := q.Get(ctx, id)
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestDispatcher_RunRejectsZeroInterval(t *testing.T) {
	d := NewDispatcher(nil, LogSender{}, 0)
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestTelegramSender_Send(t *testing.T) {
	var got telegramSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), Notification{Title: "Visa Timeline", Body: "Pay <fee>", Priority: "high"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got.ChatID != "42" || got.ParseMode != "HTML" {
		t.Errorf("unexpected request %+v", got)
	}
	if !strings.Contains(got.Text, "Pay &lt;fee&gt;") || !strings.HasPrefix(got.Text, "🔴") {
		t.Errorf("unexpected text %q", got.Text)
	}
}

func TestTelegramSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), Notification{Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}
