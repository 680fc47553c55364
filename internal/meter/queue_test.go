package meter

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_DrainReturnsArrivalOrder(t *testing.T) {
	q := NewQueue()
	q.Push(PhotoDone)
	q.Push(ScreenshotDone)
	q.Push(PhotoDone)

	got := q.Drain()
	want := []Signal{PhotoDone, ScreenshotDone, PhotoDone}
	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if again := q.Drain(); again != nil {
		t.Errorf("second Drain() = %v, want nil", again)
	}
}

func TestQueue_ReadySignalledOnPush(t *testing.T) {
	q := NewQueue()

	select {
	case <-q.Ready():
		t.Fatal("Ready fired on empty queue")
	default:
	}

	q.Push(PhotoDone)
	q.Push(PhotoDone)

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready did not fire after Push")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestQueue_ConcurrentPushLosesNothing(t *testing.T) {
	q := NewQueue()
	const producers, perProducer = 4, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(ScreenshotDone)
			}
		}()
	}

	total := 0
	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	for {
		select {
		case <-q.Ready():
			total += len(q.Drain())
		case <-doneCh:
			total += len(q.Drain())
			if total != producers*perProducer {
				t.Fatalf("drained %d signals, want %d", total, producers*perProducer)
			}
			return
		}
	}
}

func TestSignalString(t *testing.T) {
	if PhotoDone.String() != "photo_done" || ScreenshotDone.String() != "screenshot_done" {
		t.Errorf("unexpected names %q %q", PhotoDone, ScreenshotDone)
	}
}
