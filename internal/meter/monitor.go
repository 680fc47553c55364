package meter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/blackwell-systems/shotmeter/internal/clock"
)

const (
	DefaultWindow  = 600 * time.Second
	DefaultWarning = 5 * time.Second
	DefaultTick    = time.Second
)

// ErrClockFailure is returned when the wall clock reads before the unix
// epoch. The tick loop cannot recover from it.
var ErrClockFailure = errors.New("wall clock unavailable")

// Config controls the window length, the warning lead time and the tick
// cadence. A zero Window or Tick takes the default; a zero Warning disables
// the warning state.
type Config struct {
	Window  time.Duration
	Warning time.Duration
	Tick    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Warning < 0 {
		c.Warning = 0
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	return c
}

// Validate checks that rollover detection can work with the configuration:
// the tick must be shorter than the window and the warning must leave room
// for the rest of the window.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Window < time.Second {
		return fmt.Errorf("window %v is shorter than one second", c.Window)
	}
	if c.Warning >= c.Window {
		return fmt.Errorf("warning %v must be shorter than window %v", c.Warning, c.Window)
	}
	if c.Tick >= c.Window {
		return fmt.Errorf("tick %v must be shorter than window %v", c.Tick, c.Window)
	}
	return nil
}

// Snapshot is a copy of the monitor's internal state.
type Snapshot struct {
	State   State
	Flags   Flags
	Elapsed int64
}

// Monitor turns activity signals and wall-clock samples into a display
// state. It is owned by a single goroutine; none of its methods are safe for
// concurrent use.
type Monitor struct {
	window  int64
	warning int64
	tick    time.Duration

	sink   IconSink
	logger *log.Logger

	flags       Flags
	state       State
	prevElapsed int64
}

// New creates a Monitor in the Stop state.
func New(cfg Config, sink IconSink, logger *log.Logger) *Monitor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		window:  int64(cfg.Window / time.Second),
		warning: int64(cfg.Warning / time.Second),
		tick:    cfg.Tick,
		sink:    sink,
		logger:  logger,
		state:   Stop,
	}
}

// Step runs one tick: apply signals, sample the window, clear the flags on
// rollover, derive the state and publish it if it changed.
func (m *Monitor) Step(now time.Time, signals []Signal) error {
	for _, s := range signals {
		switch s {
		case PhotoDone:
			m.flags.PhotoDone = true
		case ScreenshotDone:
			m.flags.ScreenshotDone = true
		}
	}

	secs := now.Unix()
	if secs < 0 {
		return fmt.Errorf("%w: %v is before the unix epoch", ErrClockFailure, now)
	}
	elapsed := secs % m.window

	// A sample smaller than the previous one means the counter wrapped.
	// This only holds while the tick is much shorter than the window.
	if elapsed < m.prevElapsed {
		m.flags = Flags{}
	}

	next := m.derive(elapsed)
	if next != m.state {
		m.publish(next)
		m.state = next
	}

	m.prevElapsed = elapsed
	return nil
}

func (m *Monitor) derive(elapsed int64) State {
	switch {
	case m.window-elapsed <= m.warning:
		return Warning
	case m.flags.PhotoDone && m.flags.ScreenshotDone:
		return Smile
	case m.flags.PhotoDone:
		return Ok
	default:
		return Stop
	}
}

// publish reports a failed icon update and moves on; the new state is still
// taken as current so an unchanged tick does not retry.
func (m *Monitor) publish(s State) {
	if m.sink == nil {
		return
	}
	if err := m.sink.SetIcon(s.IconName()); err != nil {
		m.logger.Printf("meter: set icon %s: %v", s.IconName(), err)
	}
}

// Snapshot returns the current state, flags and last elapsed sample.
func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{State: m.state, Flags: m.flags, Elapsed: m.prevElapsed}
}

// Run publishes the initial state and then steps once per tick, or sooner
// when signals arrive on queue. It returns nil when ctx is cancelled and
// ErrClockFailure when the clock cannot be read. A step in progress always
// completes before cancellation is observed.
func (m *Monitor) Run(ctx context.Context, clk clock.Clock, queue *Queue) error {
	m.publish(m.state)

	ticker := clk.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-queue.Ready():
		}

		if err := m.Step(clk.Now(), queue.Drain()); err != nil {
			return err
		}
	}
}
