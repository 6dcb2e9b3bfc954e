//go:build !windows

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startProc(t *testing.T, command string) *Process {
	t.Helper()
	p := New(Spec{Name: "test", Command: command})
	cmd := p.ConfigureCmd(nil)
	if err := p.Start(cmd); err != nil {
		t.Fatalf("start: %v", err)
	}
	go func() { _ = p.Wait() }()
	return p
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func TestStartAndAlive(t *testing.T) {
	p := startProc(t, "sleep 5")
	defer p.Kill()
	if !p.Alive() {
		t.Fatal("expected process alive after start")
	}
	st := p.Snapshot()
	if st.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", st.PID)
	}
}

func TestStopGraceful(t *testing.T) {
	p := startProc(t, "sleep 30")
	out := p.Stop(2 * time.Second)
	if out != StopGraceful {
		t.Fatalf("expected graceful stop, got %s", out)
	}
	waitUntil(t, time.Second, func() bool { return !p.Alive() })
}

func TestStopForcedWhenTermIgnored(t *testing.T) {
	// The shell ignores TERM and keeps respawning its child, so only the
	// KILL escalation can take it down. The sentinel file confirms the trap
	// is installed before any signal is sent.
	ready := filepath.Join(t.TempDir(), "ready")
	p := startProc(t, fmt.Sprintf(
		`sh -c 'trap "" TERM; : > %s; while :; do sleep 1; done'`, ready))
	waitUntil(t, 2*time.Second, func() bool {
		_, err := os.Stat(ready)
		return err == nil
	})
	out := p.Stop(300 * time.Millisecond)
	if out != StopForced {
		t.Fatalf("expected forced stop, got %s", out)
	}
	waitUntil(t, time.Second, func() bool { return !p.Alive() })
}

func TestStopAlreadyStopped(t *testing.T) {
	p := startProc(t, "true")
	waitUntil(t, time.Second, func() bool { return !p.Alive() })
	if out := p.Stop(time.Second); out != StopAlreadyStopped {
		t.Fatalf("expected already-stopped, got %s", out)
	}
}

func TestExitCodeRecorded(t *testing.T) {
	p := startProc(t, "sh -c 'exit 7'")
	waitUntil(t, time.Second, func() bool { return !p.Snapshot().Running })
	if code := p.Snapshot().ExitCode; code != 7 {
		t.Fatalf("expected exit code 7, got %d", code)
	}
}

func TestReadinessDelayFailsOnEarlyExit(t *testing.T) {
	p := startProc(t, "true")
	err := p.EnforceReadinessDelay(500 * time.Millisecond)
	if err == nil {
		t.Fatal("expected readiness failure for short-lived process")
	}
}

func TestReadinessDelayPasses(t *testing.T) {
	p := startProc(t, "sleep 5")
	defer p.Kill()
	if err := p.EnforceReadinessDelay(200 * time.Millisecond); err != nil {
		t.Fatalf("readiness failed for live process: %v", err)
	}
}
