// Package tailer follows an append-only log file and dispatches the events
// found in each newly appended chunk.
//
// A Tailer starts at the file's current end, so existing content is never
// replayed. Every OnWakeUp(Growth) reads exactly the bytes appended since the
// previous call. A trailing fragment without a newline is held back and
// prefixed onto the next chunk, so a line split across two writes is
// classified once, whole.
//
// Rotation and truncation are not supported: a file that shrinks yields
// ErrTailInvariant and the offset jumps to the new end.
package tailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/shotmeter/internal/events"
)

// DefaultMaxLineBytes bounds the carried-over partial line.
const DefaultMaxLineBytes = 1024 * 1024

var (
	// ErrOpen means the log file could not be opened at startup.
	ErrOpen = errors.New("open log file")
	// ErrMetadata means the file length could not be read. The offset is
	// unchanged and the next wake-up retries.
	ErrMetadata = errors.New("stat log file")
	// ErrTailInvariant means the file is shorter than the bytes already
	// consumed. The offset is reset to the new length.
	ErrTailInvariant = errors.New("log file shrank")
	// ErrShortRead means fewer bytes were readable than the file length
	// promised. The offset is unchanged and the next wake-up retries.
	ErrShortRead = errors.New("short read")
	// ErrUnsupportedChange means the file was renamed, removed or
	// recreated, which the tailer does not follow.
	ErrUnsupportedChange = errors.New("unsupported change")
)

// ChangeKind describes a filesystem notification for the tailed file.
type ChangeKind int

const (
	Growth ChangeKind = iota + 1
	Metadata
	Rename
	Remove
	Create
)

func (k ChangeKind) String() string {
	switch k {
	case Growth:
		return "growth"
	case Metadata:
		return "metadata"
	case Rename:
		return "rename"
	case Remove:
		return "remove"
	case Create:
		return "create"
	default:
		return "unknown"
	}
}

// Options tune a Tailer. The zero value is usable.
type Options struct {
	// MaxLineBytes drops a carried-over fragment that grows past this size.
	MaxLineBytes int
	Logger       *log.Logger
}

// Stats counts what the tailer has processed.
type Stats struct {
	BytesRead int64
	Lines     int64
	Events    int64
}

// Tailer owns the open log file and the offset of the last byte consumed.
// It is not safe for concurrent use; the watch loop owns it.
type Tailer struct {
	path         string
	file         *os.File
	lastByteRead int64
	pending      []byte
	// discarding is set after an oversized fragment was dropped; bytes are
	// skipped until the newline that ends that line.
	discarding bool

	dispatcher events.Dispatcher
	maxLine    int
	logger     *log.Logger
	stats      Stats
}

// New opens path and positions the tailer at its current end.
func New(path string, d events.Dispatcher, opts Options) (*Tailer, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, abs, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, abs, err)
	}

	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Tailer{
		path:         abs,
		file:         f,
		lastByteRead: info.Size(),
		dispatcher:   d,
		maxLine:      opts.MaxLineBytes,
		logger:       opts.Logger,
	}, nil
}

// Path returns the absolute path being tailed.
func (t *Tailer) Path() string { return t.path }

// Offset returns the exclusive end of the bytes consumed so far.
func (t *Tailer) Offset() int64 { return t.lastByteRead }

// Pending returns the size of the partial line waiting for its newline.
func (t *Tailer) Pending() int { return len(t.pending) }

// Stats returns processing counters.
func (t *Tailer) Stats() Stats { return t.stats }

// Close closes the log file.
func (t *Tailer) Close() error {
	return t.file.Close()
}

// OnWakeUp handles one change notification. Only Growth reads the file;
// Metadata is ignored and the remaining kinds return ErrUnsupportedChange.
func (t *Tailer) OnWakeUp(kind ChangeKind) error {
	switch kind {
	case Growth:
	case Metadata:
		return nil
	default:
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedChange, kind, t.path)
	}

	info, err := os.Stat(t.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	size := info.Size()

	if size < t.lastByteRead {
		prev := t.lastByteRead
		t.lastByteRead = size
		t.pending = nil
		t.discarding = false
		t.logger.Printf("tailer: %s shrank from %d to %d bytes, skipping to the new end", t.path, prev, size)
		return fmt.Errorf("%w: length %d below offset %d", ErrTailInvariant, size, prev)
	}
	if size == t.lastByteRead {
		return nil
	}

	buf := make([]byte, size-t.lastByteRead)
	n, err := t.file.ReadAt(buf, t.lastByteRead)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes at offset %d", ErrShortRead, n, len(buf), t.lastByteRead)
		}
		return fmt.Errorf("read %s at offset %d: %w", t.path, t.lastByteRead, err)
	}

	t.consume(buf)
	t.lastByteRead = size
	t.stats.BytesRead += int64(len(buf))
	return nil
}

// consume splits pending+chunk into lines and keeps the unterminated tail.
func (t *Tailer) consume(chunk []byte) {
	data := chunk
	if t.discarding {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return
		}
		t.discarding = false
		data = data[i+1:]
	} else if len(t.pending) > 0 {
		data = append(t.pending, chunk...)
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		t.handleLine(data[:i])
		data = data[i+1:]
	}

	switch {
	case len(data) == 0:
		t.pending = nil
	case len(data) > t.maxLine:
		t.logger.Printf("tailer: dropping %d-byte partial line in %s (limit %d)", len(data), t.path, t.maxLine)
		t.pending = nil
		t.discarding = true
	default:
		t.pending = append([]byte(nil), data...)
	}
}

func (t *Tailer) handleLine(raw []byte) {
	t.stats.Lines++
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	line := strings.ToValidUTF8(string(raw), "\uFFFD")

	kind, ok := events.Classify(line)
	if !ok {
		return
	}
	t.stats.Events++
	events.Dispatch(t.dispatcher, events.Event{Kind: kind, Line: line})
}
