package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/shotmeter/internal/config"
	"github.com/blackwell-systems/shotmeter/internal/events"
	"github.com/blackwell-systems/shotmeter/internal/icon"
	"github.com/blackwell-systems/shotmeter/internal/output"
	"github.com/blackwell-systems/shotmeter/internal/store"
	"github.com/blackwell-systems/shotmeter/internal/watcher"
)

const stopTimeout = 5 * time.Second

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchQuiet       bool
	watchLogPath     string
	watchWindow      time.Duration
	watchWarning     time.Duration
	watchTick        time.Duration
	watchStateFile   string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the deskapp log and track the activity window",
		Long: `Follow the work-tracking client's log and keep the display state current.

Every appended line is classified; webcam shots and screenshots mark the
current window, and the display state is printed whenever it changes.
Pre-existing log content is never replayed.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon

Recognized events are recorded in the journal database (see 'shotmeter
history') unless "journal = false" is set in the config file.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  shotmeter watch

  # Follow a specific log with a 5-minute window
  shotmeter watch --log ~/deskapp.log --window 5m

  # Run as background daemon
  shotmeter watch --daemon

  # Stop running daemon
  shotmeter watch --stop

  # Use custom PID and log files
  shotmeter watch --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.shotmeter/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "daemon output file (default: ~/.shotmeter/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "do not echo recognized log lines")
	watchCmd.Flags().StringVar(&watchLogPath, "log", "", "deskapp log to follow (overrides log_path)")
	watchCmd.Flags().DurationVar(&watchWindow, "window", 0, "activity window length (overrides window_seconds)")
	watchCmd.Flags().DurationVar(&watchWarning, "warning", 0, "warn this long before the window ends (overrides warning_seconds)")
	watchCmd.Flags().DurationVar(&watchTick, "tick", 0, "tick period (overrides tick_millis)")
	watchCmd.Flags().StringVar(&watchStateFile, "state-file", "", "write the current display state to this file")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	if watchStop {
		return stopWatchDaemon(cmd.OutOrStdout())
	}

	cfg, err := loadWatchConfig(cmd.Flags())
	if err != nil {
		return err
	}

	if watchDaemon {
		return startWatchDaemon(cmd, cfg)
	}

	svc, cleanup, err := buildService(cfg, cmd.OutOrStdout(), watchQuiet)
	if err != nil {
		return err
	}
	defer cleanup()

	if watchDaemonChild {
		// Output is redirected to the daemon log file.
		return svc.RunDaemon(watchPIDFile)
	}

	return runWatchForeground(cmd, svc, cfg)
}

// loadWatchConfig loads the config file and applies the watch flags that
// were set explicitly.
func loadWatchConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("log") {
		p, err := config.ExpandPath(watchLogPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --log path: %w", err)
		}
		cfg.LogPath = p
	}
	if flags.Changed("state-file") {
		p, err := config.ExpandPath(watchStateFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --state-file path: %w", err)
		}
		cfg.StateFile = p
	}
	if flags.Changed("window") {
		cfg.WindowSeconds = int(watchWindow / time.Second)
	}
	if flags.Changed("warning") {
		cfg.WarningSeconds = int(watchWarning / time.Second)
	}
	if flags.Changed("tick") {
		cfg.TickMillis = int(watchTick / time.Millisecond)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildService wires the tailer, monitor, sinks and journal. The returned
// cleanup closes the journal database and must run after the service stops.
func buildService(cfg config.Config, stdout io.Writer, quiet bool) (*watcher.Service, func(), error) {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	cleanup := func() {}

	sinks := icon.Multi{icon.NewConsoleSink(stdout, nil)}
	if cfg.StateFile != "" {
		fs, err := icon.NewFileSink(cfg.StateFile)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fs)
	}

	var dispatchers []events.Dispatcher
	if !quiet {
		dispatchers = append(dispatchers, events.NewEchoDispatcher(stdout))
	}

	var journal *store.Journal
	if cfg.Journal {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := st.CreateSchema(); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to create database schema: %w", err)
		}
		journal, err = store.NewJournal(st, 0, logger)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		cleanup = func() { st.Close() }
	}

	svc, err := watcher.New(watcher.Options{
		LogPath:      cfg.LogPath,
		Meter:        cfg.Meter(),
		MaxLineBytes: cfg.MaxLineBytes,
		Sink:         sinks,
		Dispatchers:  dispatchers,
		Journal:      journal,
		Logger:       logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return svc, cleanup, nil
}

func stopWatchDaemon(out io.Writer) error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon").WithTimeout(stopTimeout)
	spinner.SetWriter(out)
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile, stopTimeout); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

// daemonArgs forwards the explicitly set flags to the daemon child.
func daemonArgs(flags *pflag.FlagSet) []string {
	var args []string
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "daemon", "daemon-child", "stop", "pid-file":
			return
		}
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return append(args, "--pid-file="+watchPIDFile)
}

func startWatchDaemon(cmd *cobra.Command, cfg config.Config) error {
	// Fail here rather than in the detached child.
	if _, err := os.Stat(cfg.LogPath); err != nil {
		return fmt.Errorf("cannot follow %s: %w", cfg.LogPath, err)
	}

	out := cmd.OutOrStdout()
	spinner := output.NewSpinner("Starting daemon")
	spinner.SetWriter(out)
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile, daemonArgs(cmd.Flags())); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nActivity monitor started\n")
	fmt.Fprintf(out, "  Following: %s\n", cfg.LogPath)
	fmt.Fprintf(out, "  PID file:  %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file:  %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: shotmeter watch --stop\n")

	return nil
}

func runWatchForeground(cmd *cobra.Command, svc *watcher.Service, cfg config.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Following %s (press Ctrl+C to stop)\n", cfg.LogPath)
	fmt.Fprintf(out, "Window %ds, warning %ds before it ends.\n\n", cfg.WindowSeconds, cfg.WarningSeconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("watcher stopped: %w", err)
	}

	fmt.Fprintf(out, "\nStopped in state %s\n", icon.Badge(svc.Snapshot().State.IconName()))
	return nil
}
