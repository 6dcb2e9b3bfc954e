//go:build !windows

package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// StopOutcome reports how a stop request concluded.
type StopOutcome int

const (
	StopAlreadyStopped StopOutcome = iota
	StopGraceful
	StopForced
)

func (o StopOutcome) String() string {
	switch o {
	case StopAlreadyStopped:
		return "already-stopped"
	case StopGraceful:
		return "graceful"
	case StopForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Process owns one OS child process. All starting, signaling and reaping of
// children goes through this type; nothing else in the repository spawns
// processes. State is guarded by mu; the exit waiter is a single goroutine
// coordinated through waitDone.
type Process struct {
	mu        sync.Mutex
	spec      Spec
	cmd       *exec.Cmd
	status    Status
	stopping  bool // stop requested; suppresses auto-restart upstream
	startUnix int64
	outCloser io.WriteCloser
	errCloser io.WriteCloser
	waitDone  chan struct{} // closed by the exit waiter when cmd.Wait returns
}

func New(spec Spec) *Process { return &Process{spec: spec} }

// Spec returns a copy of the immutable spec.
func (p *Process) Spec() Spec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec
}

// ConfigureCmd builds the exec.Cmd for a fresh run: workdir, environment,
// process-group attributes and captured stdio.
func (p *Process) ConfigureCmd(extraEnv []string) *exec.Cmd {
	p.mu.Lock()
	spec := p.spec
	p.mu.Unlock()

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	env := os.Environ()
	env = append(env, spec.Env...)
	env = append(env, extraEnv...)
	cmd.Env = env
	// New process group so the whole child tree can be signaled at once.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if spec.Log.Dir != "" || spec.Log.StdoutPath != "" || spec.Log.StderrPath != "" {
		if spec.Log.Dir != "" {
			_ = os.MkdirAll(spec.Log.Dir, 0o750)
		}
		outW, errW, _ := spec.Log.Writers(spec.Name)
		p.mu.Lock()
		p.outCloser, p.errCloser = outW, errW
		p.mu.Unlock()
		cmd.Stdout = outW
		cmd.Stderr = errW
	} else {
		// Passthrough to the container log stream.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return cmd
}

// Start launches cmd and records the new run under lock. The caller is
// responsible for attaching exactly one exit waiter via Wait.
func (p *Process) Start(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.status.Name = p.spec.Name
	p.status.Running = true
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now()
	p.status.StoppedAt = time.Time{}
	p.status.ExitErr = nil
	p.status.ExitCode = 0
	p.stopping = false
	p.startUnix = procStartUnix(cmd.Process.Pid)
	p.mu.Unlock()
	return nil
}

// Wait blocks on cmd.Wait for the current run, records the exit and releases
// anyone blocked in Stop. It must be called exactly once per Start.
func (p *Process) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.waitDone
	p.mu.Unlock()
	if cmd == nil {
		return errors.New("wait without start")
	}
	err := cmd.Wait()

	p.mu.Lock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	p.status.ExitErr = err
	p.status.ExitCode = exitCode(cmd, err)
	if p.outCloser != nil {
		_ = p.outCloser.Close()
		p.outCloser = nil
	}
	if p.errCloser != nil {
		_ = p.errCloser.Close()
		p.errCloser = nil
	}
	p.mu.Unlock()

	if done != nil {
		close(done)
	}
	return err
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	return s
}

func (p *Process) SetStopRequested(v bool) {
	p.mu.Lock()
	p.stopping = v
	p.mu.Unlock()
}

func (p *Process) StopRequested() bool {
	p.mu.Lock()
	v := p.stopping
	p.mu.Unlock()
	return v
}

// Alive probes whether the supervised child is still running. A zombie is
// not alive, and a recycled PID with a different start time is not ours.
func (p *Process) Alive() bool {
	p.mu.Lock()
	cmd := p.cmd
	started := p.startUnix
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	pid := cmd.Process.Pid
	if isZombie(pid) {
		return false
	}
	if syscall.Kill(pid, 0) != nil {
		return false
	}
	if started > 0 {
		if cur := procStartUnix(pid); cur > 0 && cur != started {
			return false
		}
	}
	return true
}

// Stop terminates the child: SIGTERM to the process group, wait up to grace
// for the exit waiter to reap it, SIGKILL if it is still alive. The returned
// outcome distinguishes graceful exits from forced kills.
func (p *Process) Stop(grace time.Duration) StopOutcome {
	if !p.Alive() {
		return StopAlreadyStopped
	}
	p.SetStopRequested(true)

	p.mu.Lock()
	pid := 0
	if p.cmd != nil && p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}
	done := p.waitDone
	p.mu.Unlock()
	if pid == 0 {
		return StopAlreadyStopped
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	if done == nil {
		// No waiter attached; best effort.
		time.Sleep(grace)
		if p.Alive() {
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			return StopForced
		}
		return StopGraceful
	}
	select {
	case <-done:
		return StopGraceful
	case <-time.After(grace):
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		// reaping is the waiter's job; do not block shutdown on it
	}
	return StopForced
}

// Kill sends SIGKILL to the process group without a grace period.
func (p *Process) Kill() {
	p.mu.Lock()
	pid := 0
	if p.cmd != nil && p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}
	done := p.waitDone
	p.mu.Unlock()
	if pid == 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	if done != nil {
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ErrExitedBeforeReady marks a child that died inside its readiness window.
var ErrExitedBeforeReady = errors.New("process exited before readiness delay")

// EnforceReadinessDelay waits until d, polling liveness; it returns an error
// if the process exits before the window elapses.
func (p *Process) EnforceReadinessDelay(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if !p.Alive() {
			return fmt.Errorf("%w (%s)", ErrExitedBeforeReady, d)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// isZombie returns true if /proc/<pid>/status reports state Z.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
