package meter

import "sync"

// Signal is an activity completion forwarded from the log tailer.
type Signal int

const (
	PhotoDone Signal = iota + 1
	ScreenshotDone
)

func (s Signal) String() string {
	switch s {
	case PhotoDone:
		return "photo_done"
	case ScreenshotDone:
		return "screenshot_done"
	default:
		return "unknown"
	}
}

// Queue carries signals from the watch loop to the tick loop. Push never
// blocks and never drops; Drain hands back everything queued so far.
type Queue struct {
	mu      sync.Mutex
	pending []Signal
	ready   chan struct{}
}

// NewQueue creates an empty signal queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends a signal and wakes the consumer if it is waiting.
func (q *Queue) Push(s Signal) {
	q.mu.Lock()
	q.pending = append(q.pending, s)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns all pending signals in arrival order.
func (q *Queue) Drain() []Signal {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	return out
}

// Ready delivers a value after at least one Push since the last receive.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len reports the number of pending signals.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
