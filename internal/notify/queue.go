package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Queue provides SQLite-backed storage for scheduled notifications.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueue opens (or creates) the SQLite database at dbPath and
// ensures the notifications table exists.
func NewQueue(dbPath string) (*Queue, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTable(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Queue{db: db, now: time.Now}, nil
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			event_id   TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			priority   TEXT NOT NULL DEFAULT 'medium',
			fire_at    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS notifications_due ON notifications (status, fire_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Schedule queues n and returns its handle.
func (q *Queue) Schedule(ctx context.Context, n Notification) (string, error) {
	now := q.now().UTC().Format(time.RFC3339)
	id := "ntf_" + uuid.NewString()
	if n.Priority == "" {
		n.Priority = "medium"
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notifications (id, event_id, title, body, priority, fire_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, n.EventID, n.Title, n.Body, n.Priority,
		n.FireAt.UTC().Format(time.RFC3339), StatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert notification: %w", err)
	}
	return id, nil
}

// Cancel withdraws a pending notification.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	return q.transition(ctx, id, StatusCancelled)
}

// MarkDelivered records that a pending notification was sent.
func (q *Queue) MarkDelivered(ctx context.Context, id string) error {
	return q.transition(ctx, id, StatusDelivered)
}

func (q *Queue) transition(ctx context.Context, id, status string) error {
	now := q.now().UTC().Format(time.RFC3339)

	result, err := q.db.ExecContext(ctx, `
		UPDATE notifications SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, status, now, id, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s: %w", status, err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// Due returns pending notifications whose fire time is at or before now.
func (q *Queue) Due(ctx context.Context) ([]Notification, error) {
	now := q.now().UTC().Format(time.RFC3339)

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_id, title, body, priority, fire_at, status, created_at, updated_at
		FROM notifications WHERE status = ? AND fire_at <= ? ORDER BY fire_at ASC
	`, StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// List returns notifications, optionally filtered by status.
// Pass an empty string to list all.
func (q *Queue) List(ctx context.Context, statusFilter string) ([]Notification, error) {
	var rows *sql.Rows
	var err error

	if statusFilter != "" {
		rows, err = q.db.QueryContext(ctx, `
			SELECT id, event_id, title, body, priority, fire_at, status, created_at, updated_at
			FROM notifications WHERE status = ? ORDER BY fire_at ASC
		`, statusFilter)
	} else {
		rows, err = q.db.QueryContext(ctx, `
			SELECT id, event_id, title, body, priority, fire_at, status, created_at, updated_at
			FROM notifications ORDER BY fire_at ASC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// Get returns a single notification by id.
func (q *Queue) Get(ctx context.Context, id string) (*Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_id, title, body, priority, fire_at, status, created_at, updated_at
		FROM notifications WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	defer rows.Close()

	list, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return &list[0], nil
}

// scanNotifications reads multiple rows into a slice of Notification.
func scanNotifications(rows *sql.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		var n Notification
		var fireAt, createdAt, updatedAt string

		if err := rows.Scan(&n.ID, &n.EventID, &n.Title, &n.Body,
			&n.Priority, &fireAt, &n.Status,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.FireAt = parseTime(n.ID, "fire_at", fireAt)
		n.CreatedAt = parseTime(n.ID, "created_at", createdAt)
		n.UpdatedAt = parseTime(n.ID, "updated_at", updatedAt)

		out = append(out, n)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

// parseTime reads an RFC3339 column. A corrupt value is logged and read
// back as the zero time.
func parseTime(id, column, value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Printf("[notify] Warning: notification %s has an invalid %s %q: %v", id, column, value, err)
		return time.Time{}
	}
	return t
}
