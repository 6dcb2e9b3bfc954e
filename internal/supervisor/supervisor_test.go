//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/mkarlsen/gatehouse/internal/process"
)

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	sup := New(nil)
	if err := sup.Register(process.Spec{Name: "", Command: "sleep 1"}); err == nil {
		t.Fatal("expected validation error")
	}
	if err := sup.Register(process.Spec{Name: "api", Command: "sleep 1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sup.Register(process.Spec{Name: "api", Command: "sleep 1"}); err == nil {
		t.Fatal("expected duplicate rejection")
	}
}

func TestStartAllAndStatuses(t *testing.T) {
	sup := New(nil)
	for _, name := range []string{"api", "worker", "gateway"} {
		if err := sup.Register(process.Spec{Name: name, Command: "sleep 30"}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	defer sup.Shutdown(2 * time.Second)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sts := sup.Statuses()
	if len(sts) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(sts))
	}
	// Registration order is preserved in output.
	for i, want := range []string{"api", "worker", "gateway"} {
		if sts[i].Name != want {
			t.Fatalf("statuses[%d] = %s, want %s", i, sts[i].Name, want)
		}
		if sts[i].State != "running" {
			t.Fatalf("%s not running: %s", want, sts[i].State)
		}
	}
}

func TestFailedCriticalReportsOnlyCritical(t *testing.T) {
	sup := New(nil)
	specs := []process.Spec{
		{Name: "critical-bad", Command: "false", ReadinessDelay: 150 * time.Millisecond, Critical: true},
		{Name: "optional-bad", Command: "false", ReadinessDelay: 150 * time.Millisecond, Critical: false},
		{Name: "good", Command: "sleep 30", Critical: true},
	}
	for _, s := range specs {
		if err := sup.Register(s); err != nil {
			t.Fatalf("register %s: %v", s.Name, err)
		}
	}
	defer sup.Shutdown(2 * time.Second)

	if err := sup.Start(context.Background()); err == nil {
		t.Fatal("expected start error for failing services")
	}
	failed := sup.FailedCritical()
	if len(failed) != 1 || failed[0] != "critical-bad" {
		t.Fatalf("expected [critical-bad], got %v", failed)
	}
}

func TestStopAllReverseOrderReachesStopped(t *testing.T) {
	sup := New(nil)
	for _, name := range []string{"a", "b"} {
		if err := sup.Register(process.Spec{Name: name, Command: "sleep 30"}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if forced := sup.StopAll(2 * time.Second); forced {
		t.Fatal("expected graceful group stop")
	}
	for _, st := range sup.Statuses() {
		if st.State != "stopped" {
			t.Fatalf("%s not stopped: %s", st.Name, st.State)
		}
	}
	sup.Shutdown(time.Second)
}

func TestStatusUnknownService(t *testing.T) {
	sup := New(nil)
	if _, err := sup.Status("nope"); err == nil {
		t.Fatal("expected error for unknown service")
	}
	if _, err := sup.Stop("nope", time.Second); err == nil {
		t.Fatal("expected error for unknown service")
	}
}
