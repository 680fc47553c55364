package app

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/shotmeter/internal/store"
)

func setStatusPIDFile(t *testing.T, path string) {
	t.Helper()
	orig := statusPIDFile
	statusPIDFile = path
	t.Cleanup(func() { statusPIDFile = orig })
}

func seedJournal(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create journal dir: %v", err)
	}
	st, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	now := time.Now()
	if err := st.InsertBatch(
		[]store.LogEvent{{Kind: "camera_finish", Line: "Got picture from the webcam.", ObservedAt: now}},
		[]store.StateChange{{State: "Smile", ChangedAt: now}},
	); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
}

func TestRunStatus_NoJournal(t *testing.T) {
	env := setupAppEnv(t)
	setStatusPIDFile(t, filepath.Join(env.home, "watch.pid"))

	cmd, buf := newTestCmd()
	if err := runStatus(cmd, nil); err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "stopped") {
		t.Errorf("expected daemon to be reported stopped:\n%s", out)
	}
	if !strings.Contains(out, env.logPath) {
		t.Errorf("expected log path in output:\n%s", out)
	}
	if !strings.Contains(out, "journal not initialized") {
		t.Errorf("expected journal hint:\n%s", out)
	}
	if _, err := os.Stat(env.dbPath); !os.IsNotExist(err) {
		t.Error("status must not create the journal database")
	}
}

func TestRunStatus_WithJournalAndDaemon(t *testing.T) {
	env := setupAppEnv(t)
	seedJournal(t, env.dbPath)

	pidFile := filepath.Join(env.home, "watch.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
	setStatusPIDFile(t, pidFile)

	cmd, buf := newTestCmd()
	if err := runStatus(cmd, nil); err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"running", strconv.Itoa(os.Getpid()), "Smile", "camera_finish"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestRunHistory(t *testing.T) {
	env := setupAppEnv(t)
	orig := historyLimit
	defer func() { historyLimit = orig }()
	historyLimit = 20

	cmd, _ := newTestCmd()
	if err := runHistory(cmd, nil); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("runHistory() without journal error = %v, want ErrNotInitialized", err)
	}

	seedJournal(t, env.dbPath)
	cmd, buf := newTestCmd()
	if err := runHistory(cmd, nil); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Log events:", "camera_finish", "State changes:", "Smile"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}

	historyLimit = 0
	if err := runHistory(cmd, nil); err == nil {
		t.Error("runHistory() expected error for non-positive limit")
	}
}
