package events

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/blackwell-systems/shotmeter/internal/meter"
)

// Dispatcher receives one callback per event kind with the originating line.
// Implementations must not block on anything but best-effort logging.
type Dispatcher interface {
	OnCaptureStart(line string)
	OnCaptureStop(line string)
	OnCameraStart(line string)
	OnCameraPrepare(line string)
	OnCameraFinish(line string)
	OnWebcamImageSaved(line string)
	OnScreenshotSaved(line string)
}

// Dispatch calls the method of d that matches ev.Kind.
func Dispatch(d Dispatcher, ev Event) {
	switch ev.Kind {
	case CaptureStart:
		d.OnCaptureStart(ev.Line)
	case CaptureStop:
		d.OnCaptureStop(ev.Line)
	case CameraStart:
		d.OnCameraStart(ev.Line)
	case CameraPrepare:
		d.OnCameraPrepare(ev.Line)
	case CameraFinish:
		d.OnCameraFinish(ev.Line)
	case WebcamImageSaved:
		d.OnWebcamImageSaved(ev.Line)
	case ScreenshotSaved:
		d.OnScreenshotSaved(ev.Line)
	}
}

// NopDispatcher ignores every event. Embed it to implement only some methods.
type NopDispatcher struct{}

func (NopDispatcher) OnCaptureStart(string)     {}
func (NopDispatcher) OnCaptureStop(string)      {}
func (NopDispatcher) OnCameraStart(string)      {}
func (NopDispatcher) OnCameraPrepare(string)    {}
func (NopDispatcher) OnCameraFinish(string)     {}
func (NopDispatcher) OnWebcamImageSaved(string) {}
func (NopDispatcher) OnScreenshotSaved(string)  {}

// kindFunc adapts a single func(kind, line) to the Dispatcher interface.
type kindFunc func(Kind, string)

func (f kindFunc) OnCaptureStart(l string)     { f(CaptureStart, l) }
func (f kindFunc) OnCaptureStop(l string)      { f(CaptureStop, l) }
func (f kindFunc) OnCameraStart(l string)      { f(CameraStart, l) }
func (f kindFunc) OnCameraPrepare(l string)    { f(CameraPrepare, l) }
func (f kindFunc) OnCameraFinish(l string)     { f(CameraFinish, l) }
func (f kindFunc) OnWebcamImageSaved(l string) { f(WebcamImageSaved, l) }
func (f kindFunc) OnScreenshotSaved(l string)  { f(ScreenshotSaved, l) }

// EchoDispatcher prints every classified line, one per event.
type EchoDispatcher struct {
	kindFunc
}

// NewEchoDispatcher writes each classified line to w. Write errors are
// ignored.
func NewEchoDispatcher(w io.Writer) *EchoDispatcher {
	var mu sync.Mutex
	return &EchoDispatcher{kindFunc: func(_ Kind, line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}}
}

// SignalDispatcher forwards webcam and screenshot completions to the
// activity meter. Other events are ignored.
type SignalDispatcher struct {
	NopDispatcher
	queue *meter.Queue
}

// NewSignalDispatcher creates a dispatcher pushing into queue.
func NewSignalDispatcher(queue *meter.Queue) *SignalDispatcher {
	return &SignalDispatcher{queue: queue}
}

func (d *SignalDispatcher) OnCameraFinish(string) { d.queue.Push(meter.PhotoDone) }

func (d *SignalDispatcher) OnScreenshotSaved(string) { d.queue.Push(meter.ScreenshotDone) }

// Recorder stores classified events. *store.Journal implements it.
type Recorder interface {
	RecordEvent(kind, line string, at time.Time)
}

// JournalDispatcher records every event with the time it was seen.
type JournalDispatcher struct {
	kindFunc
}

// NewJournalDispatcher records events through r, stamped with now().
func NewJournalDispatcher(r Recorder, now func() time.Time) *JournalDispatcher {
	if now == nil {
		now = time.Now
	}
	return &JournalDispatcher{kindFunc: func(k Kind, line string) {
		r.RecordEvent(k.String(), line, now())
	}}
}

// Fanout calls each dispatcher in order.
type Fanout []Dispatcher

func (f Fanout) OnCaptureStart(l string) {
	for _, d := range f {
		d.OnCaptureStart(l)
	}
}

func (f Fanout) OnCaptureStop(l string) {
	for _, d := range f {
		d.OnCaptureStop(l)
	}
}

func (f Fanout) OnCameraStart(l string) {
	for _, d := range f {
		d.OnCameraStart(l)
	}
}

func (f Fanout) OnCameraPrepare(l string) {
	for _, d := range f {
		d.OnCameraPrepare(l)
	}
}

func (f Fanout) OnCameraFinish(l string) {
	for _, d := range f {
		d.OnCameraFinish(l)
	}
}

func (f Fanout) OnWebcamImageSaved(l string) {
	for _, d := range f {
		d.OnWebcamImageSaved(l)
	}
}

func (f Fanout) OnScreenshotSaved(l string) {
	for _, d := range f {
		d.OnScreenshotSaved(l)
	}
}
