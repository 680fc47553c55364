package meter

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/blackwell-systems/shotmeter/internal/clock"
)

// windowStart is a unix time that falls exactly on a 600s boundary.
const windowStart = 1_700_000_400

func at(elapsed int64) time.Time {
	return time.Unix(windowStart+elapsed, 0)
}

// recordingSink remembers every icon it was given.
type recordingSink struct {
	mu    sync.Mutex
	icons []string
	err   error
	calls chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{calls: make(chan string, 64)}
}

func (r *recordingSink) SetIcon(name string) error {
	r.mu.Lock()
	r.icons = append(r.icons, name)
	err := r.err
	r.mu.Unlock()
	r.calls <- name
	return err
}

func (r *recordingSink) Icons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.icons...)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestMonitor(sink IconSink) *Monitor {
	return New(Config{Window: 600 * time.Second, Warning: 5 * time.Second}, sink, quietLogger())
}

func TestStep_StartsInStopWithoutPublishing(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)

	if err := m.Step(at(0), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.Snapshot().State; got != Stop {
		t.Errorf("state = %v, want Stop", got)
	}
	if icons := sink.Icons(); len(icons) != 0 {
		t.Errorf("icons = %v, want none", icons)
	}
}

func TestStep_DerivesStateFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		signals []Signal
		want    State
	}{
		{"no activity", nil, Stop},
		{"photo only", []Signal{PhotoDone}, Ok},
		{"screenshot only", []Signal{ScreenshotDone}, Stop},
		{"both", []Signal{ScreenshotDone, PhotoDone}, Smile},
		{"duplicates", []Signal{PhotoDone, PhotoDone}, Ok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(newRecordingSink())
			if err := m.Step(at(100), tt.signals); err != nil {
				t.Fatalf("Step: %v", err)
			}
			if got := m.Snapshot().State; got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStep_WarningDominatesFlags(t *testing.T) {
	flagSets := [][]Signal{nil, {PhotoDone}, {PhotoDone, ScreenshotDone}}

	for elapsed := int64(595); elapsed <= 599; elapsed++ {
		for _, signals := range flagSets {
			m := newTestMonitor(newRecordingSink())
			if err := m.Step(at(elapsed), signals); err != nil {
				t.Fatalf("Step: %v", err)
			}
			if got := m.Snapshot().State; got != Warning {
				t.Errorf("elapsed=%d signals=%v: state = %v, want Warning", elapsed, signals, got)
			}
		}
	}

	m := newTestMonitor(newRecordingSink())
	// The threshold is inclusive: 600-595 <= 5 warns, 600-594 does not.
	if err := m.Step(at(594), []Signal{PhotoDone}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.Snapshot().State; got != Ok {
		t.Errorf("elapsed=594: state = %v, want Ok", got)
	}
}

func TestStep_RolloverClearsFlags(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)

	if err := m.Step(at(599), []Signal{PhotoDone, ScreenshotDone}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap := m.Snapshot(); !snap.Flags.PhotoDone || !snap.Flags.ScreenshotDone {
		t.Fatalf("flags = %+v, want both set", snap.Flags)
	}

	if err := m.Step(at(600), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	snap := m.Snapshot()
	if snap.Flags != (Flags{}) {
		t.Errorf("flags after rollover = %+v, want cleared", snap.Flags)
	}
	if snap.State != Stop {
		t.Errorf("state after rollover = %v, want Stop", snap.State)
	}
	if snap.Elapsed != 0 {
		t.Errorf("elapsed = %d, want 0", snap.Elapsed)
	}

	want := []string{"Warning", "Stop"}
	if got := sink.Icons(); !reflect.DeepEqual(got, want) {
		t.Errorf("icons = %v, want %v", got, want)
	}
}

func TestStep_SignalsInRolloverTickAreCleared(t *testing.T) {
	m := newTestMonitor(newRecordingSink())

	if err := m.Step(at(590), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Signals drained on the wrapping tick are applied before the rollover
	// check and therefore belong to the window that just ended.
	if err := m.Step(at(601), []Signal{PhotoDone}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.Snapshot().State; got != Stop {
		t.Errorf("state = %v, want Stop", got)
	}
}

func TestStep_IdempotentTicks(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)

	if err := m.Step(at(10), []Signal{PhotoDone}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := m.Step(at(10), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := m.Step(at(11), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := sink.Icons(); len(got) != 1 {
		t.Errorf("icons = %v, want exactly one call", got)
	}
}

func TestStep_EndToEndWindow(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)

	var ticks []int64
	for e := int64(0); e <= 590; e += 10 {
		ticks = append(ticks, e)
	}
	ticks = append(ticks, 596)

	for _, e := range ticks {
		var signals []Signal
		switch e {
		case 10:
			signals = []Signal{PhotoDone}
		case 590:
			signals = []Signal{ScreenshotDone}
		}
		if err := m.Step(at(e), signals); err != nil {
			t.Fatalf("Step(%d): %v", e, err)
		}
	}

	// Stop at elapsed=0 is suppressed because the monitor starts in Stop.
	want := []string{"OK", "Smile", "Warning"}
	if got := sink.Icons(); !reflect.DeepEqual(got, want) {
		t.Errorf("icons = %v, want %v", got, want)
	}
}

func TestStep_ClockBeforeEpochFails(t *testing.T) {
	m := newTestMonitor(newRecordingSink())

	err := m.Step(time.Unix(-30, 0), nil)
	if !errors.Is(err, ErrClockFailure) {
		t.Fatalf("Step error = %v, want ErrClockFailure", err)
	}
}

func TestStep_SinkErrorIsNotFatal(t *testing.T) {
	sink := newRecordingSink()
	sink.err = errors.New("tray gone")
	m := newTestMonitor(sink)

	if err := m.Step(at(20), []Signal{PhotoDone}); err != nil {
		t.Fatalf("Step returned %v, want nil on sink failure", err)
	}
	if got := m.Snapshot().State; got != Ok {
		t.Errorf("state = %v, want Ok", got)
	}
	if err := m.Step(at(21), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := sink.Icons(); len(got) != 1 {
		t.Errorf("icons = %v, want one attempt", got)
	}
}

func TestStep_CustomWindow(t *testing.T) {
	m := New(Config{Window: 60 * time.Second, Warning: 10 * time.Second}, newRecordingSink(), quietLogger())

	if err := m.Step(time.Unix(120+49, 0), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.Snapshot().State; got != Stop {
		t.Errorf("elapsed=49: state = %v, want Stop", got)
	}
	if err := m.Step(time.Unix(120+50, 0), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.Snapshot().State; got != Warning {
		t.Errorf("elapsed=50: state = %v, want Warning", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"explicit", Config{Window: 600 * time.Second, Warning: 5 * time.Second, Tick: time.Second}, false},
		{"warning equals window", Config{Window: 60 * time.Second, Warning: 60 * time.Second}, true},
		{"tick too long", Config{Window: 60 * time.Second, Tick: 2 * time.Minute}, true},
		{"sub-second window", Config{Window: 500 * time.Millisecond, Tick: 100 * time.Millisecond}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateIconNames(t *testing.T) {
	for _, s := range []State{Stop, Ok, Smile, Warning} {
		got, ok := ParseState(s.IconName())
		if !ok || got != s {
			t.Errorf("ParseState(%q) = %v, %v; want %v, true", s.IconName(), got, ok, s)
		}
	}
	if _, ok := ParseState("Bogus"); ok {
		t.Error("ParseState(Bogus) reported ok")
	}
}

func waitIcon(t *testing.T, sink *recordingSink, want string) {
	t.Helper()
	select {
	case got := <-sink.calls:
		if got != want {
			t.Fatalf("icon = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for icon %q", want)
	}
}

func TestRun_PublishesInitialStateAndReactsToSignals(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)
	clk := clock.Fake(at(30))
	queue := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, clk, queue) }()

	waitIcon(t, sink, "Stop")
	clk.WaitForTickers(1)

	queue.Push(PhotoDone)
	waitIcon(t, sink, "OK")

	queue.Push(ScreenshotDone)
	waitIcon(t, sink, "Smile")

	clk.Advance(566 * time.Second)
	waitIcon(t, sink, "Warning")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ClockFailureStopsLoop(t *testing.T) {
	sink := newRecordingSink()
	m := newTestMonitor(sink)
	clk := clock.Fake(at(0))
	queue := NewQueue()

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), clk, queue) }()

	waitIcon(t, sink, "Stop")
	clk.WaitForTickers(1)
	clk.Set(time.Unix(-10, 0))
	queue.Push(PhotoDone)

	select {
	case err := <-done:
		if !errors.Is(err, ErrClockFailure) {
			t.Errorf("Run returned %v, want ErrClockFailure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on clock failure")
	}
}
