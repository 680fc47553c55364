package store

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFlushInterval = 5 * time.Second
	journalBuffer        = 1024
)

type journalEntry struct {
	event  *LogEvent
	change *StateChange
}

// Journal batches log events and state changes and writes them to the store
// from its own goroutine. Record calls never block: when the buffer is full
// the entry is dropped and counted.
type Journal struct {
	store    *Store
	interval time.Duration
	logger   *log.Logger

	in      chan journalEntry
	stopCh  chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	stopped sync.Once
}

// NewJournal creates a Journal writing to st every interval (default 5s).
func NewJournal(st *Store, interval time.Duration, logger *log.Logger) (*Journal, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Journal{
		store:    st,
		interval: interval,
		logger:   logger,
		in:       make(chan journalEntry, journalBuffer),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the writer goroutine.
func (j *Journal) Start() {
	j.wg.Add(1)
	go j.run()
}

// RecordEvent queues a classified log line.
func (j *Journal) RecordEvent(kind, line string, at time.Time) {
	j.push(journalEntry{event: &LogEvent{Kind: kind, Line: line, ObservedAt: at}})
}

// RecordState queues a display-state change.
func (j *Journal) RecordState(state string, at time.Time) {
	j.push(journalEntry{change: &StateChange{State: state, ChangedAt: at}})
}

func (j *Journal) push(e journalEntry) {
	select {
	case j.in <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped reports how many entries were discarded because the buffer was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// run flushes on each tick and does a final flush when stopped.
func (j *Journal) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	var evs []LogEvent
	var changes []StateChange

	collect := func(e journalEntry) {
		if e.event != nil {
			evs = append(evs, *e.event)
		}
		if e.change != nil {
			changes = append(changes, *e.change)
		}
	}
	flush := func() {
		if err := j.store.InsertBatch(evs, changes); err != nil {
			j.logger.Printf("journal: flush of %d entries failed: %v", len(evs)+len(changes), err)
		}
		evs, changes = nil, nil
	}

	for {
		select {
		case e := <-j.in:
			collect(e)
		case <-ticker.C:
			flush()
		case <-j.stopCh:
			for {
				select {
				case e := <-j.in:
					collect(e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Stop flushes pending entries and waits for the writer to exit. It is safe
// to call more than once.
func (j *Journal) Stop() error {
	j.stopped.Do(func() { close(j.stopCh) })
	j.wg.Wait()
	if n := j.dropped.Load(); n > 0 {
		j.logger.Printf("journal: %d entries dropped (buffer full)", n)
	}
	return nil
}
