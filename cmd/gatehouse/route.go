package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mkarlsen/gatehouse/internal/config"
	"github.com/mkarlsen/gatehouse/internal/logger"
	"github.com/mkarlsen/gatehouse/internal/router"
)

// runRouter serves the route table until SIGTERM/SIGINT arrives.
func runRouter(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogLevel != "" {
		logLevel = cfg.LogLevel
	}
	logger.Setup(logLevel)

	opts, err := cfg.RouterOptions()
	if err != nil {
		return fmt.Errorf("invalid router config: %w", err)
	}
	if opts.Listen == "" {
		return fmt.Errorf("router.listen must be set")
	}
	srv, err := router.New(opts)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
