//go:build !windows

package coordinator

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mkarlsen/gatehouse/internal/supervisor"
)

// State tracks the coordinator's shutdown progress.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultGrace bounds the wait for voluntary child exit before SIGKILL.
const DefaultGrace = 10 * time.Second

// cause records why shutdown began. failedService is empty for an ordinary
// signal-initiated shutdown.
type cause struct {
	reason        string
	failedService string
}

// Coordinator converts termination signals and health-monitor triggers into
// a single ordered graceful-stop sequence. The Running -> ShuttingDown
// transition happens exactly once; further signals or triggers while
// shutting down are ignored.
type Coordinator struct {
	sup     *supervisor.Supervisor
	grace   time.Duration
	state   atomic.Int32
	causeCh chan cause
}

func New(sup *supervisor.Supervisor, grace time.Duration) *Coordinator {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Coordinator{
		sup:     sup,
		grace:   grace,
		causeCh: make(chan cause, 1),
	}
}

// State returns the current coordinator state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// TriggerSignal requests shutdown on behalf of a termination signal.
// Returns false when shutdown is already in progress.
func (c *Coordinator) TriggerSignal(reason string) bool {
	return c.trigger(cause{reason: reason})
}

// TriggerFailure requests shutdown because a critical service failed.
func (c *Coordinator) TriggerFailure(service string) bool {
	return c.trigger(cause{reason: "critical service failed", failedService: service})
}

func (c *Coordinator) trigger(why cause) bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		slog.Debug("shutdown already in progress, ignoring trigger", "reason", why.reason)
		return false
	}
	c.causeCh <- why
	return true
}

// Run installs the signal handlers and blocks until shutdown completes,
// returning the process exit code: the failed service's exit code when the
// health monitor triggered shutdown, 1 when any forced kill was required,
// 0 for a clean stop.
func (c *Coordinator) Run(ctx context.Context) int {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			c.TriggerSignal(sig.String())
		case <-ctx.Done():
			c.TriggerSignal("context canceled")
		case why := <-c.causeCh:
			return c.shutdown(why)
		}
	}
}

func (c *Coordinator) shutdown(why cause) int {
	slog.Info("shutting down service group", "reason", why.reason, "grace", c.grace)

	// Capture the failed service's exit status before tearing it down.
	code := 0
	if why.failedService != "" {
		code = 1
		if st, err := c.sup.Status(why.failedService); err == nil && st.ExitCode > 0 {
			code = st.ExitCode
		}
	}

	forced := c.sup.Shutdown(c.grace)
	if forced {
		slog.Warn("shutdown degraded: grace period elapsed, forced kill issued")
		if code == 0 {
			code = 1
		}
	}
	c.state.Store(int32(StateStopped))
	slog.Info("service group stopped", "exit_code", code)
	return code
}
