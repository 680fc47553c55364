package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/shotmeter/internal/config"
	"github.com/blackwell-systems/shotmeter/internal/output"
	"github.com/blackwell-systems/shotmeter/internal/store"
	"github.com/blackwell-systems/shotmeter/internal/watcher"
)

var (
	statusPIDFile string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Check daemon status and the current activity window",
		Long: `Display the current status of the shotmeter daemon and the activity window.

Shows:
  • Daemon running status and PID
  • The deskapp log being followed and its size
  • The current window and when it started
  • The latest display state from the journal
  • Events recorded in the journal during the current window`,
		Example: `  # Check status
  shotmeter status`,
		RunE: runStatus,
	}
)

func init() {
	statusCmd.Flags().StringVar(&statusPIDFile, "pid-file", "", "PID file path (default: ~/.shotmeter/watch.pid)")
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := statusPIDFile
	if pidFile == "" {
		pidFile, err = getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get PID file path: %w", err)
		}
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	status := output.Status{
		Running:     running,
		PIDFile:     pidFile,
		LogPath:     cfg.LogPath,
		Window:      window,
		WindowStart: windowStart(time.Now(), window),
	}
	if running {
		status.PID, _ = watcher.ReadPID(pidFile)
	}
	if fi, err := os.Stat(cfg.LogPath); err == nil {
		status.LogExists = true
		status.LogSize = fi.Size()
	}

	fillJournalStatus(&status, cfg)

	fmt.Fprint(cmd.OutOrStdout(), output.RenderStatus(status))
	return nil
}

// fillJournalStatus adds the latest state and the window's event counts.
// Problems are reported in the summary rather than failing the command.
func fillJournalStatus(status *output.Status, cfg config.Config) {
	if !cfg.Journal {
		status.JournalErr = errors.New("disabled in config")
		return
	}

	st, err := openJournal(cfg.DBPath)
	if err != nil {
		status.JournalErr = err
		return
	}
	defer st.Close()

	status.Latest, err = st.LatestStateChange()
	if err != nil {
		status.JournalErr = err
		return
	}
	status.Counts, err = st.CountLogEventsSince(status.WindowStart)
	if err != nil {
		status.JournalErr = err
	}
}

// openJournal opens an existing journal database without creating one.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to check database: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// windowStart returns the start of the window containing now. Windows are
// aligned to the Unix epoch, as in the monitor.
func windowStart(now time.Time, window time.Duration) time.Time {
	secs := int64(window / time.Second)
	if secs <= 0 {
		return now
	}
	unix := now.Unix()
	return time.Unix(unix-unix%secs, 0)
}
