package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkarlsen/gatehouse/internal/supervisor"
)

// DefaultInterval is the polling period between liveness sweeps.
const DefaultInterval = 5 * time.Second

// Monitor polls the supervisor on a fixed interval and fails fast: as soon
// as any critical service is pinned to Failed, the shutdown trigger fires
// and the whole group is torn down rather than running partially alive.
// Each sweep is a cheap in-memory status read, so a hung child can never
// starve the loop.
type Monitor struct {
	sup      *supervisor.Supervisor
	interval time.Duration
	trigger  func(reason string)
}

// New builds a monitor. trigger is invoked at most once, with the name of
// the first critical service observed in Failed state.
func New(sup *supervisor.Supervisor, interval time.Duration, trigger func(reason string)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{sup: sup, interval: interval, trigger: trigger}
}

// Run loops until the context is canceled or a critical failure is seen.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if name, ok := m.sweep(); ok {
				slog.Error("critical service failed, initiating group shutdown", "service", name)
				m.trigger(name)
				return
			}
		}
	}
}

// sweep returns the first failed critical service, if any.
func (m *Monitor) sweep() (string, bool) {
	failed := m.sup.FailedCritical()
	if len(failed) == 0 {
		return "", false
	}
	return failed[0], true
}
