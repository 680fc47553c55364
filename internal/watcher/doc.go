// Package watcher runs the shotmeter monitor: it follows the deskapp log
// and keeps the display state current.
//
// Two goroutines do the work. The watch loop waits on fsnotify for changes
// to the log's directory and hands each change for the log file to the
// tailer, which classifies new lines and pushes completion signals into a
// meter.Queue. The tick loop runs meter.Monitor, which drains that queue
// once per tick and publishes the display state to the icon sink. The queue
// is the only state the two loops share.
//
// Key features:
//   - Byte-exact incremental reads (no line is read twice or skipped)
//   - Per-error policy: transient tail errors are logged, clock failure is fatal
//   - Optional SQLite activity journal, flushed in batches
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
//
// Example usage:
//
//	svc, err := watcher.New(watcher.Options{
//		LogPath: "/path/to/deskapp.log",
//		Sink:    icon.NewConsoleSink(os.Stdout, nil),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Run in the foreground until ctx is cancelled
//	if err := svc.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package watcher
