// Package events classifies deskapp log lines and routes the resulting
// events to consumers.
//
// The deskapp client writes one line per action to its log. A handful of
// those lines mark camera and capture activity; Classify maps a line to at
// most one Kind, and a Dispatcher receives one callback per Kind with the
// original line attached for diagnostics.
//
// Dispatcher implementations:
//   - EchoDispatcher writes every classified line to a writer
//   - SignalDispatcher forwards webcam and screenshot completions to the
//     activity meter's queue without blocking
//   - JournalDispatcher records events in the activity journal
//   - Fanout calls several dispatchers in order
//
// Example usage:
//
//	queue := meter.NewQueue()
//	d := events.Fanout{
//		events.NewEchoDispatcher(os.Stdout),
//		events.NewSignalDispatcher(queue),
//	}
//	if kind, ok := events.Classify(line); ok {
//		events.Dispatch(d, events.Event{Kind: kind, Line: line})
//	}
package events
