package events

import (
	"regexp"
	"strings"
)

// Kind identifies a semantic event found in the deskapp log.
type Kind int

const (
	CaptureStart Kind = iota + 1
	CaptureStop
	CameraStart
	CameraPrepare
	CameraFinish
	WebcamImageSaved
	ScreenshotSaved
)

var kindNames = map[Kind]string{
	CaptureStart:     "capture_start",
	CaptureStop:      "capture_stop",
	CameraStart:      "camera_start",
	CameraPrepare:    "camera_prepare",
	CameraFinish:     "camera_finish",
	WebcamImageSaved: "webcam_image_saved",
	ScreenshotSaved:  "screenshot_saved",
}

// String returns the stable name used in logs and the journal.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Kinds returns every Kind in declaration order.
func Kinds() []Kind {
	return []Kind{CaptureStart, CaptureStop, CameraStart, CameraPrepare, CameraFinish, WebcamImageSaved, ScreenshotSaved}
}

// Event is a classified log line.
type Event struct {
	Kind Kind
	Line string
}

// phraseMatchers are tried in order before the image-save patterns.
var phraseMatchers = []struct {
	phrase string
	kind   Kind
}{
	{"Camera capture started.", CameraStart},
	{"Preparing to get Webcamshot.", CameraPrepare},
	{"Got picture from the webcam.", CameraFinish},
	{"Data capture started.", CaptureStart},
	{"Data capture stopped.", CaptureStop},
}

// Both save events share the "Saved an image to " prefix and differ only in
// the file name at the end of the path.
var (
	webcamSaved     = regexp.MustCompile(`(?i)Saved an image to (?:.*[/\\])?webcam[_-][^/\\]*$`)
	screenshotSaved = regexp.MustCompile(`(?i)Saved an image to (?:.*[/\\])?screenshot[_-][^/\\]*$`)
)

// Classify maps a log line to at most one event kind. Matching is ordered
// and the first match wins. It reports false for lines that match nothing.
func Classify(line string) (Kind, bool) {
	for _, m := range phraseMatchers {
		if strings.Contains(line, m.phrase) {
			return m.kind, true
		}
	}

	if !strings.Contains(line, "Saved an image to ") {
		return 0, false
	}
	switch {
	case webcamSaved.MatchString(line):
		return WebcamImageSaved, true
	case screenshotSaved.MatchString(line):
		return ScreenshotSaved, true
	}
	return 0, false
}
