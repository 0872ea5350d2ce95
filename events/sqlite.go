package events

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"image"
	"time"

	"firewatch/tracking"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql creates the fire_events table and its time index
//
//go:embed schema.sql
var schemaSQL string

// StoredEvent is a fire event read back from the database
type StoredEvent struct {
	ID     string
	Source string
	tracking.FireEvent
}

// SQLiteStore keeps fire events in a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	source string
}

// NewSQLiteStore opens (or creates) the database at path. Source labels every
// event this store records, typically the video source string.
func NewSQLiteStore(path, source string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init event schema: %w", err)
	}
	return &SQLiteStore{db: db, source: source}, nil
}

// Record inserts the event under a fresh id
func (s *SQLiteStore) Record(ctx context.Context, ev tracking.FireEvent) error {
	const query = `
		INSERT INTO fire_events (id, detected_at_unix_nanos, box_x, box_y, box_w, box_h, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	b := ev.Box
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), ev.Timestamp.UnixNano(),
		b.Min.X, b.Min.Y, b.Dx(), b.Dy(), s.source)
	if err != nil {
		return fmt.Errorf("insert fire event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, detected_at_unix_nanos, box_x, box_y, box_w, box_h, source
		FROM fire_events
		ORDER BY detected_at_unix_nanos DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query fire events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			ev         StoredEvent
			nanos      int64
			x, y, w, h int
		)
		if err := rows.Scan(&ev.ID, &nanos, &x, &y, &w, &h, &ev.Source); err != nil {
			return nil, fmt.Errorf("scan fire event: %w", err)
		}
		ev.Timestamp = time.Unix(0, nanos)
		ev.Box = image.Rect(x, y, x+w, y+h)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the number of stored events
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fire_events`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
