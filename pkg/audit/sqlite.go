package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	ts        INTEGER NOT NULL,
	user      TEXT NOT NULL,
	device    TEXT NOT NULL,
	operation TEXT NOT NULL,
	path      TEXT NOT NULL,
	variant   TEXT NOT NULL,
	success   INTEGER NOT NULL,
	body      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_device ON audit_events(device, ts);
`

// SQLiteLogger stores audit events in a SQLite database. Filter fields
// are indexed columns; the full event is kept as JSON.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens or creates the database at path.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &SQLiteLogger{db: db}, nil
}

// Log inserts one event.
func (l *SQLiteLogger) Log(event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	_, err = l.db.Exec(
		`INSERT INTO audit_events(id, ts, user, device, operation, path, variant, success, body) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UnixNano(), event.User, event.Device, event.Operation, event.Path,
		event.Variant, boolInt(event.Success), string(body))
	if err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// Query returns matching events in the order they were logged.
func (l *SQLiteLogger) Query(filter Filter) ([]*Event, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if filter.ID != "" {
		add("id = ?", filter.ID)
	}
	if filter.Device != "" {
		add("device = ?", filter.Device)
	}
	if filter.User != "" {
		add("user = ?", filter.User)
	}
	if filter.Operation != "" {
		add("operation = ?", filter.Operation)
	}
	if filter.Path != "" {
		add("path = ?", filter.Path)
	}
	if filter.Variant != "" {
		add("variant = ?", filter.Variant)
	}
	if !filter.StartTime.IsZero() {
		add("ts >= ?", filter.StartTime.UnixNano())
	}
	if !filter.EndTime.IsZero() {
		add("ts <= ?", filter.EndTime.UnixNano())
	}
	if filter.SuccessOnly {
		add("success = ?", 1)
	}
	if filter.FailureOnly {
		add("success = ?", 0)
	}

	q := "SELECT body FROM audit_events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var e Event
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("decoding audit event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
