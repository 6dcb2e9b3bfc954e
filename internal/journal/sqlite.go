package journal

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteSink writes lifecycle events to a local SQLite file
// (modernc.org/sqlite driver, CGO-free). Use ":memory:" for in-memory.
type sqliteSink struct {
	db *sql.DB
}

func newSQLite(path string) (*sqliteSink, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	s := &sqliteSink{db: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteSink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TIMESTAMP NOT NULL,
			event TEXT NOT NULL,
			name TEXT NOT NULL,
			pid INTEGER NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_name ON service_events(name);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteSink) Send(ctx context.Context, evt Event) error {
	at := evt.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var detail any
	if evt.Record.Detail != "" {
		detail = evt.Record.Detail
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_events(occurred_at, event, name, pid, state, exit_code, detail)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		at.UTC(), string(evt.Type), evt.Record.Name, evt.Record.PID,
		evt.Record.State, evt.Record.ExitCode, detail)
	return err
}

func (s *sqliteSink) Close() error { return s.db.Close() }

// EventsByName returns the most recent events for a service, newest first.
func (s *sqliteSink) EventsByName(ctx context.Context, name string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, event, name, pid, state, exit_code, COALESCE(detail, '')
		FROM service_events
		WHERE name=?
		ORDER BY id DESC
		LIMIT ?;`, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.OccurredAt, &typ, &e.Record.Name, &e.Record.PID,
			&e.Record.State, &e.Record.ExitCode, &e.Record.Detail); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
