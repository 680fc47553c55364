package store

import "time"

// LogEvent is a classified deskapp log line.
type LogEvent struct {
	ID         int64
	Kind       string // events.Kind name, e.g. "camera_finish"
	Line       string
	ObservedAt time.Time
}

// StateChange records a display-state transition published to the icon sink.
type StateChange struct {
	ID        int64
	State     string // icon name: "Stop", "OK", "Smile" or "Warning"
	ChangedAt time.Time
}
