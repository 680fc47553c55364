package store

const schema = `
CREATE TABLE IF NOT EXISTS log_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    line TEXT NOT NULL,
    observed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS state_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    state TEXT NOT NULL,
    changed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_log_events_observed ON log_events(observed_at);
CREATE INDEX IF NOT EXISTS idx_log_events_kind ON log_events(kind);
CREATE INDEX IF NOT EXISTS idx_state_changes_changed ON state_changes(changed_at);
`
