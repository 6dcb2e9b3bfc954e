//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkarlsen/gatehouse/internal/journal"
	"github.com/mkarlsen/gatehouse/internal/metrics"
	"github.com/mkarlsen/gatehouse/internal/process"
)

// State is the lifecycle state of one managed service.
//
// State machine:
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//	                          |
//	                          v (budget exhausted)
//	                        Failed (terminal for automatic transitions)
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type actionKind int

const (
	actionStart actionKind = iota
	actionStop
	actionShutdown
)

type command struct {
	action actionKind
	grace  time.Duration
	reply  chan cmdResult
}

type cmdResult struct {
	outcome process.StopOutcome
	err     error
}

// ManagedService runs the state machine for a single descriptor. All state
// transitions happen on one goroutine fed by cmdChan and exitChan, so no
// transition can race another. Exactly one exit waiter exists per live run
// and every observed exit is consumed exactly once.
type ManagedService struct {
	mu       sync.RWMutex
	state    State
	restarts int

	spec     process.Spec
	proc     *process.Process
	cmdChan  chan command
	exitChan chan error
	doneChan chan struct{}
	sink     journal.Sink
	log      *slog.Logger
}

func NewManagedService(spec process.Spec, sink journal.Sink) *ManagedService {
	m := &ManagedService{
		state:    StateStopped,
		spec:     spec,
		proc:     process.New(spec),
		cmdChan:  make(chan command, 16),
		exitChan: make(chan error, 1),
		doneChan: make(chan struct{}),
		sink:     sink,
		log:      slog.Default().With("service", spec.Name),
	}
	go m.run()
	return m
}

// Spec returns the immutable descriptor.
func (m *ManagedService) Spec() process.Spec { return m.spec }

// State returns the current lifecycle state.
func (m *ManagedService) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns a snapshot including the state machine state.
func (m *ManagedService) Status() process.Status {
	m.mu.RLock()
	state := m.state
	restarts := m.restarts
	m.mu.RUnlock()

	st := m.proc.Snapshot()
	st.Name = m.spec.Name
	st.Running = state == StateRunning && m.proc.Alive()
	st.Restarts = restarts
	st.State = state.String()
	return st
}

// Start launches the service and blocks until it is Running or Failed.
func (m *ManagedService) Start() error {
	reply := make(chan cmdResult, 1)
	select {
	case m.cmdChan <- command{action: actionStart, reply: reply}:
		return (<-reply).err
	case <-m.doneChan:
		return fmt.Errorf("service %s: state machine shut down", m.spec.Name)
	}
}

// Stop terminates the service with the given grace period and reports how
// the stop concluded.
func (m *ManagedService) Stop(grace time.Duration) (process.StopOutcome, error) {
	reply := make(chan cmdResult, 1)
	select {
	case m.cmdChan <- command{action: actionStop, grace: grace, reply: reply}:
		r := <-reply
		return r.outcome, r.err
	case <-m.doneChan:
		return process.StopAlreadyStopped, nil
	}
}

// Shutdown stops the service and terminates the state machine goroutine.
func (m *ManagedService) Shutdown(grace time.Duration) (process.StopOutcome, error) {
	reply := make(chan cmdResult, 1)
	select {
	case m.cmdChan <- command{action: actionShutdown, grace: grace, reply: reply}:
		r := <-reply
		return r.outcome, r.err
	case <-m.doneChan:
		return process.StopAlreadyStopped, nil
	}
}

func (m *ManagedService) run() {
	defer close(m.doneChan)
	for {
		select {
		case cmd := <-m.cmdChan:
			switch cmd.action {
			case actionStart:
				cmd.reply <- cmdResult{err: m.handleStart()}
			case actionStop:
				out, err := m.handleStop(cmd.grace)
				cmd.reply <- cmdResult{outcome: out, err: err}
			case actionShutdown:
				out, err := m.handleStop(cmd.grace)
				cmd.reply <- cmdResult{outcome: out, err: err}
				return
			}
		case err := <-m.exitChan:
			m.handleUnexpectedExit(err)
		}
	}
}

func (m *ManagedService) handleStart() error {
	switch m.State() {
	case StateRunning:
		if m.proc.Alive() {
			return fmt.Errorf("service %s already running (pid %d)", m.spec.Name, m.proc.Snapshot().PID)
		}
	case StateStarting, StateStopping:
		return fmt.Errorf("service %s is %s", m.spec.Name, m.State())
	}
	// Explicit operator start grants a fresh restart budget.
	m.mu.Lock()
	m.restarts = 0
	m.mu.Unlock()
	m.proc.SetStopRequested(false)
	return m.startWithBudget()
}

// startWithBudget attempts to bring the service to Running, consuming one
// unit of the restart budget per failed attempt. Exhaustion pins Failed.
func (m *ManagedService) startWithBudget() error {
	m.setState(StateStarting)
	for {
		err := m.spawnOnce()
		if err == nil {
			m.setState(StateRunning)
			metrics.IncStart(m.spec.Name)
			m.journal(journal.EventStart, "")
			m.log.Info("service running", "pid", m.proc.Snapshot().PID, "restarts", m.restartCount())
			return nil
		}
		m.log.Warn("service start attempt failed", "error", err)
		if !m.consumeBudget() {
			m.fail(err)
			return err
		}
	}
}

// spawnOnce starts the child, attaches its single exit waiter and enforces
// the readiness delay. On early exit the queued exit event is consumed here
// so it is never double-counted.
func (m *ManagedService) spawnOnce() error {
	cmd := m.proc.ConfigureCmd(nil)
	if err := m.proc.Start(cmd); err != nil {
		return err
	}
	go func() { m.exitChan <- m.proc.Wait() }()
	if err := m.proc.EnforceReadinessDelay(m.spec.ReadinessDelay); err != nil {
		<-m.exitChan
		return err
	}
	return nil
}

// handleUnexpectedExit reacts to a child exit observed while Running.
// Requested stops are finalized by handleStop; anything else either consumes
// restart budget and respawns or pins the service to Failed.
func (m *ManagedService) handleUnexpectedExit(exitErr error) {
	if m.State() != StateRunning {
		return
	}
	if m.proc.StopRequested() {
		m.setState(StateStopped)
		m.journal(journal.EventStop, "")
		return
	}
	st := m.proc.Snapshot()
	m.log.Warn("service exited unexpectedly", "pid", st.PID, "exit_code", st.ExitCode, "error", exitErr)
	m.journal(journal.EventStop, "unexpected exit")

	if !m.spec.AutoRestart || !m.consumeBudget() {
		m.fail(exitErr)
		return
	}
	_ = m.startWithBudget()
}

func (m *ManagedService) handleStop(grace time.Duration) (process.StopOutcome, error) {
	switch m.State() {
	case StateStopped:
		return process.StopAlreadyStopped, nil
	case StateFailed:
		// Not alive, but group shutdown still finalizes it as stopped.
		m.setState(StateStopped)
		return process.StopAlreadyStopped, nil
	}
	m.setState(StateStopping)
	out := m.proc.Stop(grace)
	if out != process.StopAlreadyStopped {
		// The waiter reaps the child and posts exactly one exit event.
		<-m.exitChan
	}
	m.setState(StateStopped)
	metrics.IncStop(m.spec.Name)
	m.journal(journal.EventStop, out.String())
	m.log.Info("service stopped", "outcome", out.String())
	return out, nil
}

// consumeBudget increments the restart counter if budget remains. The
// counter never exceeds MaxStartRetries.
func (m *ManagedService) consumeBudget() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restarts >= m.spec.MaxStartRetries {
		return false
	}
	m.restarts++
	metrics.IncRestart(m.spec.Name)
	return true
}

func (m *ManagedService) restartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restarts
}

func (m *ManagedService) fail(cause error) {
	m.setState(StateFailed)
	metrics.IncFailure(m.spec.Name)
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	m.journal(journal.EventFail, detail)
	m.log.Error("service failed permanently", "restarts", m.restartCount(), "error", cause)
}

func (m *ManagedService) setState(s State) {
	m.mu.Lock()
	old := m.state
	m.state = s
	m.mu.Unlock()
	if old != s {
		metrics.RecordStateTransition(m.spec.Name, old.String(), s.String())
	}
}

func (m *ManagedService) journal(t journal.EventType, detail string) {
	if m.sink == nil {
		return
	}
	st := m.proc.Snapshot()
	evt := journal.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Record: journal.Record{
			Name:     m.spec.Name,
			PID:      st.PID,
			State:    m.State().String(),
			ExitCode: st.ExitCode,
			Detail:   detail,
		},
	}
	if err := m.sink.Send(context.Background(), evt); err != nil {
		m.log.Warn("journal write failed", "error", err)
	}
}
