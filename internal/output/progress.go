package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const spinFrames = `|/-\`

const spinInterval = 100 * time.Millisecond

// isTerminal reports whether w is backed by a terminal file descriptor.
// Buffers and pipes report false.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// Spinner shows that a daemon start or stop is in progress. On a terminal
// it redraws "|  label (Ns remaining)" in place; anywhere else it writes
// "label..." once so captured output stays readable.
type Spinner struct {
	mu      sync.Mutex
	label   string
	out     io.Writer
	timed   bool
	budget  time.Duration // zero counts up instead of down
	started time.Time
	active  bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewSpinner(label string) *Spinner {
	return &Spinner{label: label, out: os.Stdout}
}

// WithTimeout adds a countdown from budget to the label, or an elapsed
// counter when budget is zero. Call it before Start.
func (s *Spinner) WithTimeout(budget time.Duration) *Spinner {
	s.mu.Lock()
	s.timed = true
	s.budget = budget
	s.mu.Unlock()
	return s
}

func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()
}

// Start is a no-op on a running spinner.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()

	if !isTerminal(s.out) {
		fmt.Fprintf(s.out, "%s...\n", s.label)
		return
	}

	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.spin(s.quit)
}

func (s *Spinner) spin(quit <-chan struct{}) {
	defer s.wg.Done()
	tick := time.NewTicker(spinInterval)
	defer tick.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-quit:
			return
		case <-tick.C:
		}
		s.mu.Lock()
		fmt.Fprintf(s.out, "\r%c  %s", spinFrames[frame%len(spinFrames)], s.status())
		s.mu.Unlock()
	}
}

// status renders the label with its timing suffix. Callers hold mu.
func (s *Spinner) status() string {
	if !s.timed {
		return s.label
	}
	elapsed := time.Since(s.started)
	if s.budget <= 0 {
		return fmt.Sprintf("%s (%ds elapsed)", s.label, int(elapsed.Seconds()))
	}
	left := s.budget - elapsed
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%s (%ds remaining)", s.label, int(left.Seconds()))
}

// Stop halts the animation and blanks the spinner line. Once Stop returns
// nothing more is written by the animation.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	quit := s.quit
	s.quit = nil
	s.mu.Unlock()

	if quit == nil {
		return
	}
	close(quit)
	s.wg.Wait()

	s.mu.Lock()
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(s.status())+3))
	s.mu.Unlock()
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	fmt.Fprintln(s.out, message)
	s.mu.Unlock()
}
