// Package icon provides the sinks that display the meter's state. The
// system tray itself lives outside this program; a helper can follow the
// state file written by FileSink.
package icon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var badgeStyles = map[string]lipgloss.Style{
	"Stop":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#D7005F")).Padding(0, 1),
	"OK":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#5FD75F")).Padding(0, 1),
	"Smile":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#87AFFF")).Padding(0, 1),
	"Warning": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFD700")).Padding(0, 1),
}

// Badge renders an icon name as a colored label.
func Badge(name string) string {
	style, ok := badgeStyles[name]
	if !ok {
		return name
	}
	return style.Render(name)
}

// ConsoleSink prints each state change as a timestamped badge.
type ConsoleSink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewConsoleSink writes to w using now for timestamps (time.Now if nil).
func NewConsoleSink(w io.Writer, now func() time.Time) *ConsoleSink {
	if now == nil {
		now = time.Now
	}
	return &ConsoleSink{w: w, now: now}
}

func (s *ConsoleSink) SetIcon(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s %s\n", s.now().Format("15:04:05"), Badge(name))
	return err
}

// FileSink writes the current icon name to a file via temp-file rename so
// readers never see a partial write.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path, creating its directory.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state file directory: %w", err)
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) SetIcon(name string) error {
	tmpPath := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp")
	if err := os.WriteFile(tmpPath, []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// StateRecorder stores state changes. *store.Journal implements it.
type StateRecorder interface {
	RecordState(state string, at time.Time)
}

// JournalSink records every state change in the activity journal.
type JournalSink struct {
	rec StateRecorder
	now func() time.Time
}

// NewJournalSink records through rec using now for timestamps.
func NewJournalSink(rec StateRecorder, now func() time.Time) *JournalSink {
	if now == nil {
		now = time.Now
	}
	return &JournalSink{rec: rec, now: now}
}

func (s *JournalSink) SetIcon(name string) error {
	s.rec.RecordState(name, s.now())
	return nil
}

// Sink matches meter.IconSink.
type Sink interface {
	SetIcon(name string) error
}

// Multi forwards to every sink and joins their errors. A failing sink does
// not keep the others from being updated.
type Multi []Sink

func (m Multi) SetIcon(name string) error {
	var errs []error
	for _, s := range m {
		if err := s.SetIcon(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
