package meter

// State is the display state surfaced through the icon sink. States are
// ordered by display priority, not by time.
type State int

const (
	Stop State = iota
	Ok
	Smile
	Warning
)

// IconName returns the icon resource name for the state.
func (s State) IconName() string {
	switch s {
	case Ok:
		return "OK"
	case Smile:
		return "Smile"
	case Warning:
		return "Warning"
	default:
		return "Stop"
	}
}

func (s State) String() string { return s.IconName() }

// ParseState maps an icon name back to a State.
func ParseState(name string) (State, bool) {
	for _, s := range []State{Stop, Ok, Smile, Warning} {
		if s.IconName() == name {
			return s, true
		}
	}
	return Stop, false
}

// Flags records which activities completed in the current window.
type Flags struct {
	PhotoDone      bool
	ScreenshotDone bool
}

// IconSink receives the display state whenever it changes.
type IconSink interface {
	SetIcon(name string) error
}
