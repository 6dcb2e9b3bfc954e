//go:build !windows

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkarlsen/gatehouse/internal/config"
	"github.com/mkarlsen/gatehouse/internal/coordinator"
	"github.com/mkarlsen/gatehouse/internal/health"
	"github.com/mkarlsen/gatehouse/internal/journal"
	"github.com/mkarlsen/gatehouse/internal/logger"
	"github.com/mkarlsen/gatehouse/internal/metrics"
	"github.com/mkarlsen/gatehouse/internal/server"
	"github.com/mkarlsen/gatehouse/internal/supervisor"
)

// runEntrypoint is the container PID-1 path: start the group, watch it, wait
// for a shutdown trigger and report how the group ended through the exit
// code.
func runEntrypoint(configPath, logLevel string) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	if cfg.LogLevel != "" {
		logLevel = cfg.LogLevel
	}
	logger.Setup(logLevel)

	specs, err := cfg.Specs()
	if err != nil {
		return 0, fmt.Errorf("invalid config: %w", err)
	}
	if len(specs) == 0 {
		return 0, fmt.Errorf("no services configured")
	}

	sink, err := journal.Open(cfg.JournalOptions())
	if err != nil {
		return 0, fmt.Errorf("open journal: %w", err)
	}
	if sink != nil {
		defer func() { _ = sink.Close() }()
	}

	if cfg.MetricsListen != "" {
		if err := metrics.RegisterDefault(); err != nil {
			slog.Warn("metrics registration failed", "error", err)
		} else {
			go serveMetrics(cfg.MetricsListen)
		}
	}

	sup := supervisor.New(sink)
	for _, spec := range specs {
		if err := sup.Register(spec); err != nil {
			return 0, fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}

	var controlSrv *http.Server
	if cfg.ControlListen != "" {
		controlSrv = server.NewServer(cfg.ControlListen, "/api", sup)
		slog.Info("control API listening", "addr", cfg.ControlListen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := coordinator.New(sup, cfg.GracePeriod)
	monitor := health.New(sup, cfg.HealthInterval, func(service string) {
		coord.TriggerFailure(service)
	})

	if err := sup.Start(ctx); err != nil {
		// A service that could not start is already pinned Failed; the
		// monitor turns that into a group shutdown on its next tick.
		slog.Error("group start incomplete", "error", err)
	}
	go monitor.Run(ctx)

	code := coord.Run(ctx)

	if controlSrv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = controlSrv.Shutdown(shutCtx)
		shutCancel()
	}
	return code, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.Warn("metrics server stopped", "error", err)
	}
}
