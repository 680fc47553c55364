package store

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Log event operations

// InsertLogEvent records a single classified log line.
func (s *Store) InsertLogEvent(ev LogEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO log_events (kind, line, observed_at) VALUES (?, ?, ?)`,
		ev.Kind, ev.Line, ev.ObservedAt.UTC().Format(timeLayout),
	)
	return wrapQueryErr("insert log event", err)
}

// ListLogEvents returns the most recent log events, newest first.
func (s *Store) ListLogEvents(limit int) ([]LogEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, kind, line, observed_at
		FROM log_events
		ORDER BY observed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapQueryErr("list log events", err)
	}
	defer rows.Close()

	var out []LogEvent
	for rows.Next() {
		var ev LogEvent
		var observedAt string
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Line, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log event: %w", err)
		}
		ev.ObservedAt, err = time.Parse(timeLayout, observedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse observed_at for event %d: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log events: %w", err)
	}
	return out, nil
}

// CountLogEventsSince returns the number of events per kind observed at or
// after since.
func (s *Store) CountLogEventsSince(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT kind, COUNT(*)
		FROM log_events
		WHERE observed_at >= ?
		GROUP BY kind
	`, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, wrapQueryErr("count log events", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event counts: %w", err)
	}
	return counts, nil
}

// State change operations

// InsertStateChange records a display-state transition.
func (s *Store) InsertStateChange(sc StateChange) error {
	_, err := s.db.Exec(
		`INSERT INTO state_changes (state, changed_at) VALUES (?, ?)`,
		sc.State, sc.ChangedAt.UTC().Format(timeLayout),
	)
	return wrapQueryErr("insert state change", err)
}

// ListStateChanges returns the most recent state changes, newest first.
func (s *Store) ListStateChanges(limit int) ([]StateChange, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, state, changed_at
		FROM state_changes
		ORDER BY changed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapQueryErr("list state changes", err)
	}
	defer rows.Close()

	var out []StateChange
	for rows.Next() {
		sc, err := scanStateChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state changes: %w", err)
	}
	return out, nil
}

// LatestStateChange returns the most recent state change, or nil when none
// has been recorded.
func (s *Store) LatestStateChange() (*StateChange, error) {
	row := s.db.QueryRow(`
		SELECT id, state, changed_at
		FROM state_changes
		ORDER BY changed_at DESC, id DESC
		LIMIT 1
	`)
	sc, err := scanStateChange(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapQueryErr("latest state change", err)
	}
	return &sc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStateChange(r rowScanner) (StateChange, error) {
	var sc StateChange
	var changedAt string
	if err := r.Scan(&sc.ID, &sc.State, &changedAt); err != nil {
		return StateChange{}, err
	}
	t, err := time.Parse(timeLayout, changedAt)
	if err != nil {
		return StateChange{}, fmt.Errorf("failed to parse changed_at for state change %d: %w", sc.ID, err)
	}
	sc.ChangedAt = t
	return sc, nil
}

// Batch operations

// InsertBatch writes events and state changes in a single transaction.
func (s *Store) InsertBatch(evs []LogEvent, changes []StateChange) error {
	if len(evs) == 0 && len(changes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, ev := range evs {
		if _, err := tx.Exec(
			`INSERT INTO log_events (kind, line, observed_at) VALUES (?, ?, ?)`,
			ev.Kind, ev.Line, ev.ObservedAt.UTC().Format(timeLayout),
		); err != nil {
			tx.Rollback() //nolint:errcheck
			return wrapQueryErr("insert log event", err)
		}
	}
	for _, sc := range changes {
		if _, err := tx.Exec(
			`INSERT INTO state_changes (state, changed_at) VALUES (?, ?)`,
			sc.State, sc.ChangedAt.UTC().Format(timeLayout),
		); err != nil {
			tx.Rollback() //nolint:errcheck
			return wrapQueryErr("insert state change", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
