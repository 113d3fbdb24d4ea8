// Package history keeps a local audit trail of dispatched notifications in
// an embedded sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pushrelay/pushrelay/internal/logging"
	"github.com/pushrelay/pushrelay/internal/notify"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	notification_id TEXT NOT NULL,
	app_name TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	dispatched_at TIMESTAMP NOT NULL,
	channels_ok INTEGER NOT NULL,
	channels_total INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_at ON dispatches(dispatched_at);
`

// Entry is one recorded dispatch.
type Entry struct {
	NotificationID string
	AppName        string
	Title          string
	Body           string
	ObservedAt     time.Time
	DispatchedAt   time.Time
	ChannelsOK     int
	ChannelsTotal  int
}

// Store is a sqlite-backed dispatch log. It is safe for concurrent use;
// the pool is capped at one connection since the embedded driver
// serializes writers anyway.
type Store struct {
	db  *sql.DB
	Now func() time.Time // injectable clock for testing
}

// Open creates or opens the history database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db, Now: time.Now}, nil
}

// Record appends one dispatch outcome. results is the per-channel success
// map produced by the dispatcher.
func (s *Store) Record(ctx context.Context, n notify.Notification, results map[string]bool) error {
	ok := 0
	for _, sent := range results {
		if sent {
			ok++
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (notification_id, app_name, title, body, observed_at, dispatched_at, channels_ok, channels_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AppName, n.Title, n.Body, n.ObservedAt.UTC(), s.Now().UTC(), ok, len(results))
	if err != nil {
		return fmt.Errorf("recording dispatch: %w", err)
	}
	return nil
}

// Recent returns the latest dispatches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT notification_id, app_name, title, body, observed_at, dispatched_at, channels_ok, channels_total
		 FROM dispatches ORDER BY dispatched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.NotificationID, &e.AppName, &e.Title, &e.Body, &e.ObservedAt, &e.DispatchedAt, &e.ChannelsOK, &e.ChannelsTotal); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than maxAge and returns how many were
// removed. A non-positive maxAge disables pruning.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.Now().Add(-maxAge).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatches WHERE dispatched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Get().Debug().Int64("removed", n).Msg("pruned dispatch history")
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
