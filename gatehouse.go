//go:build !windows

package gatehouse

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/mkarlsen/gatehouse/internal/config"
	"github.com/mkarlsen/gatehouse/internal/journal"
	"github.com/mkarlsen/gatehouse/internal/metrics"
	"github.com/mkarlsen/gatehouse/internal/process"
	"github.com/mkarlsen/gatehouse/internal/router"
	iapi "github.com/mkarlsen/gatehouse/internal/server"
	"github.com/mkarlsen/gatehouse/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = process.Spec

type Status = process.Status

type StopOutcome = process.StopOutcome

type JournalConfig = journal.Config

type JournalSink = journal.Sink

// Supervisor is a thin facade over internal/supervisor.Supervisor for
// embedding the service group in another program.
type Supervisor struct{ inner *supervisor.Supervisor }

func New() *Supervisor { return &Supervisor{inner: supervisor.New(nil)} }

// NewWithJournal persists lifecycle events to the given sink.
func NewWithJournal(jc JournalConfig) (*Supervisor, error) {
	sink, err := journal.Open(jc)
	if err != nil {
		return nil, err
	}
	return &Supervisor{inner: supervisor.New(sink)}, nil
}

func (s *Supervisor) Register(spec Spec) error           { return s.inner.Register(spec) }
func (s *Supervisor) Start(ctx context.Context) error    { return s.inner.Start(ctx) }
func (s *Supervisor) Status(name string) (Status, error) { return s.inner.Status(name) }
func (s *Supervisor) Statuses() []Status                 { return s.inner.Statuses() }
func (s *Supervisor) FailedCritical() []string           { return s.inner.FailedCritical() }
func (s *Supervisor) Stop(name string, grace time.Duration) (StopOutcome, error) {
	return s.inner.Stop(name, grace)
}
func (s *Supervisor) StopAll(grace time.Duration) bool  { return s.inner.StopAll(grace) }
func (s *Supervisor) Shutdown(grace time.Duration) bool { return s.inner.Shutdown(grace) }

// Router facade.

type RouterOptions = router.Options

type Upstream = router.Upstream

type Route = router.Route

type PrefixRoute = router.PrefixRoute

type RegexRoute = router.RegexRoute

type StaticRoute = router.StaticRoute

// NewRouter builds the request router from options.
func NewRouter(opts RouterOptions) (*router.Server, error) { return router.New(opts) }

// Config loading.

type Config = cfg.FileConfig

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// Control API server. The returned server is already listening.
func NewControlServer(addr, basePath string, s *Supervisor) *http.Server {
	return iapi.NewServer(addr, basePath, s.inner)
}

// Metrics helpers.

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

func RegisterMetricsDefault() error { return metrics.RegisterDefault() }

func MetricsHandler() http.Handler { return metrics.Handler() }
