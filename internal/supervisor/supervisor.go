//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkarlsen/gatehouse/internal/journal"
	"github.com/mkarlsen/gatehouse/internal/process"
)

// Supervisor owns the full set of managed services. It is the only
// component allowed to create or terminate OS processes; everything else
// observes through Status snapshots.
type Supervisor struct {
	mu       sync.RWMutex
	services map[string]*ManagedService
	order    []string
	sink     journal.Sink
}

func New(sink journal.Sink) *Supervisor {
	return &Supervisor{
		services: make(map[string]*ManagedService),
		sink:     sink,
	}
}

// Register adds a descriptor. Registration order is preserved: Start walks
// it forward, StopAll walks it in reverse.
func (s *Supervisor) Register(spec process.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[spec.Name]; ok {
		return fmt.Errorf("duplicate service name %q", spec.Name)
	}
	s.services[spec.Name] = NewManagedService(spec, s.sink)
	s.order = append(s.order, spec.Name)
	return nil
}

// Start launches every registered service in order and returns once each
// one is Running or has exhausted its restart budget. The first failure is
// returned but remaining services are still started, so the health monitor
// observes a consistent group.
func (s *Supervisor) Start(ctx context.Context) error {
	var firstErr error
	for _, name := range s.names() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		svc := s.get(name)
		if svc == nil {
			continue
		}
		if err := svc.Start(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("start %s: %w", name, err)
		}
	}
	return firstErr
}

// Status returns the snapshot for one service.
func (s *Supervisor) Status(name string) (process.Status, error) {
	svc := s.get(name)
	if svc == nil {
		return process.Status{}, fmt.Errorf("unknown service: %s", name)
	}
	return svc.Status(), nil
}

// Statuses returns snapshots for all services in registration order.
func (s *Supervisor) Statuses() []process.Status {
	names := s.names()
	out := make([]process.Status, 0, len(names))
	for _, name := range names {
		if svc := s.get(name); svc != nil {
			out = append(out, svc.Status())
		}
	}
	return out
}

// FailedCritical returns the names of critical services pinned to Failed.
func (s *Supervisor) FailedCritical() []string {
	var out []string
	for _, name := range s.names() {
		svc := s.get(name)
		if svc == nil || !svc.Spec().Critical {
			continue
		}
		if svc.State() == StateFailed {
			out = append(out, name)
		}
	}
	return out
}

// Stop terminates one service within grace.
func (s *Supervisor) Stop(name string, grace time.Duration) (process.StopOutcome, error) {
	svc := s.get(name)
	if svc == nil {
		return process.StopAlreadyStopped, fmt.Errorf("unknown service: %s", name)
	}
	return svc.Stop(grace)
}

// StopAll broadcasts a graceful stop to every service in reverse
// registration order and reports whether any stop had to be forced.
func (s *Supervisor) StopAll(grace time.Duration) (forced bool) {
	names := s.names()
	for i := len(names) - 1; i >= 0; i-- {
		svc := s.get(names[i])
		if svc == nil {
			continue
		}
		out, err := svc.Stop(grace)
		if err != nil {
			slog.Warn("stop failed", "service", names[i], "error", err)
			continue
		}
		if out == process.StopForced {
			forced = true
		}
	}
	return forced
}

// Shutdown stops everything and tears down the state machines.
func (s *Supervisor) Shutdown(grace time.Duration) (forced bool) {
	names := s.names()
	for i := len(names) - 1; i >= 0; i-- {
		svc := s.get(names[i])
		if svc == nil {
			continue
		}
		out, _ := svc.Shutdown(grace)
		if out == process.StopForced {
			forced = true
		}
	}
	return forced
}

func (s *Supervisor) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Supervisor) get(name string) *ManagedService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services[name]
}
