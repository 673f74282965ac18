// Package journal persists the engine's audit trail: every phase
// transition and session event lands in a SQLite table so an operator can
// reconstruct what the intersection did and when. The journal is advisory;
// the engine restarts cleanly without it.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one recorded engine event.
type Event struct {
	ID     string
	At     time.Time
	Kind   string
	Road   int
	Detail string
}

// Journal is a size-bounded SQLite event log.
type Journal struct {
	db      *sql.DB
	maxRows int
}

// Open opens (or creates) a journal at dbPath. maxRows bounds the table;
// oldest events are pruned first.
func Open(dbPath string, maxRows int) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id     TEXT NOT NULL PRIMARY KEY,
			ts     INTEGER NOT NULL,
			kind   TEXT NOT NULL,
			road   INTEGER NOT NULL,
			detail TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Journal{db: db, maxRows: maxRows}, nil
}

// Append records one event. detail is marshaled to JSON; nil is stored as
// an empty object.
func (j *Journal) Append(kind string, road int, detail any) error {
	body := []byte("{}")
	if detail != nil {
		var err error
		body, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal event detail: %w", err)
		}
	}

	_, err := j.db.Exec(
		`INSERT INTO events(id, ts, kind, road, detail) VALUES(?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UnixNano(), kind, road, string(body),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return j.pruneIfNeeded()
}

// Recent returns up to n events, newest first.
func (j *Journal) Recent(n int) ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT id, ts, kind, road, detail FROM events ORDER BY ts DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Road, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.At = time.Unix(0, ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent rows: %w", err)
	}
	return events, nil
}

// Count returns the number of stored events.
func (j *Journal) Count() (int, error) {
	row := j.db.QueryRow(`SELECT COUNT(*) FROM events`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) pruneIfNeeded() error {
	n, err := j.Count()
	if err != nil {
		return err
	}
	if n <= j.maxRows {
		return nil
	}
	_, err = j.db.Exec(
		`DELETE FROM events WHERE id IN (
			SELECT id FROM events ORDER BY ts ASC LIMIT ?
		)`, n-j.maxRows,
	)
	if err != nil {
		return fmt.Errorf("prune events: %w", err)
	}
	return nil
}
