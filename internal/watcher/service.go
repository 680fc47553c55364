package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/shotmeter/internal/clock"
	"github.com/blackwell-systems/shotmeter/internal/events"
	"github.com/blackwell-systems/shotmeter/internal/icon"
	"github.com/blackwell-systems/shotmeter/internal/meter"
	"github.com/blackwell-systems/shotmeter/internal/store"
	"github.com/blackwell-systems/shotmeter/internal/tailer"
)

// Options configures a Service.
type Options struct {
	// LogPath is the deskapp log to follow. It must exist.
	LogPath string
	// Meter sets the window, warning threshold and tick period.
	Meter        meter.Config
	MaxLineBytes int
	// Sink receives display-state changes. Nil discards them.
	Sink meter.IconSink
	// Dispatchers receive every classified event in addition to the meter.
	Dispatchers []events.Dispatcher
	// Journal, when set, records events and state changes. The Service
	// starts it and stops it (flushing) on shutdown.
	Journal *store.Journal
	Clock   clock.Clock
	Logger  *log.Logger
}

// Service owns the tailer, the monitor and the fsnotify watcher.
type Service struct {
	tailer  *tailer.Tailer
	monitor *meter.Monitor
	queue   *meter.Queue
	fsw     *fsnotify.Watcher
	journal *store.Journal
	clock   clock.Clock
	logger  *log.Logger

	stopCh   chan struct{}
	cancel   context.CancelFunc
	errCh    chan error
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

type discardSink struct{}

func (discardSink) SetIcon(string) error { return nil }

// New opens the log at its current end and registers a watch on its
// directory. Errors from opening the log wrap tailer.ErrOpen.
func New(opts Options) (*Service, error) {
	if opts.LogPath == "" {
		return nil, fmt.Errorf("log path cannot be empty")
	}
	if err := opts.Meter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid meter config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	queue := meter.NewQueue()
	dispatch := events.Fanout{events.NewSignalDispatcher(queue)}
	dispatch = append(dispatch, opts.Dispatchers...)

	var sink meter.IconSink = discardSink{}
	if opts.Sink != nil {
		sink = opts.Sink
	}
	if opts.Journal != nil {
		dispatch = append(dispatch, events.NewJournalDispatcher(opts.Journal, opts.Clock.Now))
		sink = icon.Multi{sink, icon.NewJournalSink(opts.Journal, opts.Clock.Now)}
	}

	t, err := tailer.New(opts.LogPath, dispatch, tailer.Options{
		MaxLineBytes: opts.MaxLineBytes,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(t.Path())); err != nil {
		fsw.Close()
		t.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(t.Path()), err)
	}

	return &Service{
		tailer:  t,
		monitor: meter.New(opts.Meter, sink, opts.Logger),
		queue:   queue,
		fsw:     fsw,
		journal: opts.Journal,
		clock:   opts.Clock,
		logger:  opts.Logger,
		stopCh:  make(chan struct{}),
		errCh:   make(chan error, 1),
	}, nil
}

// Start launches the watch loop and the tick loop.
func (s *Service) Start() error {
	if s.started {
		return fmt.Errorf("service already started")
	}
	s.started = true

	if s.journal != nil {
		s.journal.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.watchLoop()
	go s.tickLoop(ctx)

	s.logger.Printf("watcher: following %s from offset %d", s.tailer.Path(), s.tailer.Offset())
	return nil
}

// Err delivers the fatal error that ended the tick loop, if any.
func (s *Service) Err() <-chan error { return s.errCh }

// Stop halts both loops, closes the log and flushes the journal. It is safe
// to call more than once and before Start.
func (s *Service) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
		err = s.fsw.Close()
		s.wg.Wait()

		if cerr := s.tailer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if s.journal != nil {
			if jerr := s.journal.Stop(); jerr != nil && err == nil {
				err = jerr
			}
		}

		snap := s.monitor.Snapshot()
		stats := s.tailer.Stats()
		s.logger.Printf("watcher: stopped in state %s after %d lines (%d events, %d bytes)",
			snap.State, stats.Lines, stats.Events, stats.BytesRead)
	})
	return err
}

// Run starts the service and blocks until ctx is cancelled or the tick loop
// fails. It always stops the service before returning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-s.errCh:
	}

	if err := s.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Snapshot returns the monitor state. Call it only after Stop.
func (s *Service) Snapshot() meter.Snapshot { return s.monitor.Snapshot() }

func (s *Service) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	if err := s.monitor.Run(ctx, s.clock, s.queue); err != nil {
		s.logger.Printf("watcher: tick loop failed: %v", err)
		s.errCh <- err
	}
}

// watchLoop maps fsnotify events for the log file to tailer wake-ups. It
// returns when the fsnotify watcher is closed.
func (s *Service) watchLoop() {
	defer s.wg.Done()

	for {
		select {
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.tailer.Path() {
				continue
			}
			kind, ok := changeKind(ev.Op)
			if !ok {
				continue
			}
			s.wake(kind)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			s.logger.Printf("watcher: file watcher error: %v", err)
		case <-s.stopCh:
			return
		}
	}
}

// wake runs one tailer wake-up and applies the error policy: every tail
// error is logged and the loop keeps going.
func (s *Service) wake(kind tailer.ChangeKind) {
	err := s.tailer.OnWakeUp(kind)
	switch {
	case err == nil:
	case errors.Is(err, tailer.ErrUnsupportedChange):
		s.logger.Printf("watcher: %v (log rotation is not followed)", err)
	case errors.Is(err, tailer.ErrTailInvariant):
		s.logger.Printf("watcher: %v", err)
	case errors.Is(err, tailer.ErrMetadata), errors.Is(err, tailer.ErrShortRead):
		s.logger.Printf("watcher: %v, retrying on next change", err)
	default:
		s.logger.Printf("watcher: read failed: %v", err)
	}
}

// changeKind maps an fsnotify op to a tailer change. Write wins when ops
// are combined so appended data is never missed.
func changeKind(op fsnotify.Op) (tailer.ChangeKind, bool) {
	switch {
	case op&fsnotify.Write != 0:
		return tailer.Growth, true
	case op&fsnotify.Create != 0:
		return tailer.Create, true
	case op&fsnotify.Remove != 0:
		return tailer.Remove, true
	case op&fsnotify.Rename != 0:
		return tailer.Rename, true
	case op&fsnotify.Chmod != 0:
		return tailer.Metadata, true
	default:
		return 0, false
	}
}
