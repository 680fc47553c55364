package store

import (
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	return store
}

func TestListLogEvents_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	// Skip CreateSchema to simulate an uninitialized database.
	_, err = s.ListLogEvents(10)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListLogEvents() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}

	_, err = s.LatestStateChange()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("LatestStateChange() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}

func TestErrNotInitialized_ErrorMessage(t *testing.T) {
	if !strings.Contains(ErrNotInitialized.Error(), "shotmeter watch") {
		t.Errorf("ErrNotInitialized message %q should mention 'shotmeter watch'", ErrNotInitialized.Error())
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("second CreateSchema() failed: %v", err)
	}
}

func TestInsertAndListLogEvents(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := []LogEvent{
		{Kind: "camera_start", Line: "Camera capture started.", ObservedAt: base},
		{Kind: "camera_finish", Line: "Got picture from the webcam.", ObservedAt: base.Add(2 * time.Second)},
		{Kind: "screenshot_saved", Line: "Saved an image to /tmp/screenshot_1.jpg", ObservedAt: base.Add(500 * time.Millisecond)},
	}
	for _, ev := range events {
		if err := s.InsertLogEvent(ev); err != nil {
			t.Fatalf("InsertLogEvent(%s) failed: %v", ev.Kind, err)
		}
	}

	got, err := s.ListLogEvents(10)
	if err != nil {
		t.Fatalf("ListLogEvents() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListLogEvents() returned %d events, want 3", len(got))
	}

	wantOrder := []string{"camera_finish", "screenshot_saved", "camera_start"}
	for i, kind := range wantOrder {
		if got[i].Kind != kind {
			t.Errorf("event[%d].Kind = %q, want %q", i, got[i].Kind, kind)
		}
	}
	if !got[0].ObservedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("event[0].ObservedAt = %v, want %v", got[0].ObservedAt, base.Add(2*time.Second))
	}

	limited, err := s.ListLogEvents(1)
	if err != nil {
		t.Fatalf("ListLogEvents(1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListLogEvents(1) returned %d events, want 1", len(limited))
	}
}

func TestCountLogEventsSince(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, kind := range []string{"camera_finish", "camera_finish", "screenshot_saved", "camera_finish"} {
		ev := LogEvent{Kind: kind, Line: kind, ObservedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.InsertLogEvent(ev); err != nil {
			t.Fatalf("InsertLogEvent() failed: %v", err)
		}
	}

	counts, err := s.CountLogEventsSince(base.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountLogEventsSince() failed: %v", err)
	}
	if counts["camera_finish"] != 2 {
		t.Errorf("camera_finish count = %d, want 2", counts["camera_finish"])
	}
	if counts["screenshot_saved"] != 1 {
		t.Errorf("screenshot_saved count = %d, want 1", counts["screenshot_saved"])
	}
}

func TestLatestStateChange(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestStateChange()
	if err != nil {
		t.Fatalf("LatestStateChange() on empty journal failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("LatestStateChange() = %+v, want nil", latest)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, state := range []string{"Stop", "OK", "Smile"} {
		if err := s.InsertStateChange(StateChange{State: state, ChangedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("InsertStateChange(%s) failed: %v", state, err)
		}
	}

	latest, err = s.LatestStateChange()
	if err != nil {
		t.Fatalf("LatestStateChange() failed: %v", err)
	}
	if latest == nil || latest.State != "Smile" {
		t.Errorf("LatestStateChange() = %+v, want Smile", latest)
	}

	changes, err := s.ListStateChanges(2)
	if err != nil {
		t.Fatalf("ListStateChanges() failed: %v", err)
	}
	if len(changes) != 2 || changes[0].State != "Smile" || changes[1].State != "OK" {
		t.Errorf("ListStateChanges(2) = %+v, want [Smile OK]", changes)
	}
}

func TestInsertBatch(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.InsertBatch(nil, nil); err != nil {
		t.Fatalf("InsertBatch(nil, nil) failed: %v", err)
	}

	err := s.InsertBatch(
		[]LogEvent{{Kind: "capture_start", Line: "Data capture started.", ObservedAt: now}},
		[]StateChange{{State: "Warning", ChangedAt: now}},
	)
	if err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	evs, err := s.ListLogEvents(10)
	if err != nil || len(evs) != 1 {
		t.Fatalf("ListLogEvents() = %v, %v; want 1 event", evs, err)
	}
	latest, err := s.LatestStateChange()
	if err != nil || latest == nil || latest.State != "Warning" {
		t.Fatalf("LatestStateChange() = %+v, %v; want Warning", latest, err)
	}
}

func TestJournal_FlushesOnStop(t *testing.T) {
	s := newTestStore(t)
	j, err := NewJournal(s, time.Hour, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewJournal() failed: %v", err)
	}
	j.Start()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	j.RecordEvent("camera_finish", "Got picture from the webcam.", now)
	j.RecordState("OK", now)

	if err := j.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := j.Stop(); err != nil {
		t.Fatalf("second Stop() failed: %v", err)
	}

	evs, err := s.ListLogEvents(10)
	if err != nil {
		t.Fatalf("ListLogEvents() failed: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != "camera_finish" {
		t.Errorf("journal events = %+v, want one camera_finish", evs)
	}
	latest, err := s.LatestStateChange()
	if err != nil || latest == nil || latest.State != "OK" {
		t.Errorf("LatestStateChange() = %+v, %v; want OK", latest, err)
	}
	if j.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", j.Dropped())
	}
}

func TestJournal_DropsWhenBufferFull(t *testing.T) {
	s := newTestStore(t)
	j, err := NewJournal(s, time.Hour, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewJournal() failed: %v", err)
	}
	// Not started: nothing drains the buffer.
	now := time.Now()
	for i := 0; i < journalBuffer+3; i++ {
		j.RecordEvent("camera_start", "x", now)
	}
	if j.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", j.Dropped())
	}
}

func TestNewJournal_NilStore(t *testing.T) {
	if _, err := NewJournal(nil, 0, nil); err == nil {
		t.Error("NewJournal(nil) expected error")
	}
}
