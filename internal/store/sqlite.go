package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fomo/internal/domain"
	"fomo/internal/ports"
)

var ErrNotFound = errors.New("meeting not found")

// SQLite persists archived meetings. Each meeting is stored as one JSON
// document with a few columns pulled out for listing.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ ports.ArchiveStore = (*SQLite)(nil)

func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		archived_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_archived ON meetings(archived_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save inserts or replaces meeting. A saved meeting moves to the front of List.
func (s *SQLite) Save(ctx context.Context, meeting domain.Meeting) error {
	payload, err := json.Marshal(meeting)
	if err != nil {
		return fmt.Errorf("encode meeting %s: %w", meeting.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, status, start_time, archived_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			start_time = excluded.start_time,
			archived_at = excluded.archived_at,
			payload = excluded.payload
	`, meeting.ID, meeting.Title, string(meeting.Status), meeting.StartTime, time.Now().UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("save meeting %s: %w", meeting.ID, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meeting %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns archived meetings, most recently archived first.
func (s *SQLite) List(ctx context.Context) ([]domain.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM meetings ORDER BY archived_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	meetings := []domain.Meeting{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		var meeting domain.Meeting
		if err := json.Unmarshal([]byte(payload), &meeting); err != nil {
			return nil, fmt.Errorf("decode meeting: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	return meetings, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (domain.Meeting, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM meetings WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("get meeting %s: %w", id, err)
	}

	var meeting domain.Meeting
	if err := json.Unmarshal([]byte(payload), &meeting); err != nil {
		return domain.Meeting{}, fmt.Errorf("decode meeting %s: %w", id, err)
	}
	return meeting, nil
}
