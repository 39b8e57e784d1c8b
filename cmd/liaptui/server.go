package main

import (
	"context"
	"os"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/liaptui/liaptui/cmd/liaptui/shared"
	"github.com/liaptui/liaptui/internal/server"
)

// ServerCmd contains core server configuration
type ServerCmd struct {
	Config   string `kong:"default='liaptui.hcl',help='Path to HCL config file'"`
	Addr     string `kong:"help='Listen address, overrides the config file'"`
	Debug    bool   `kong:"help='Enable debug logging'"`
	Seed     *int64 `kong:"help='Deterministic RNG seed for all rooms (optional)'"`
	Monitor  bool   `kong:"help='Render a periodic room table to stdout'"`
	Interval int    `kong:"default='5',help='Monitor refresh interval in seconds'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return err
	}

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
	} else {
		seed = time.Now().UnixNano()
		logger.Info("using random seed", "seed", seed)
	}

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	registry := server.NewRegistry(logger, cfg, quartz.NewReal(), seed, metrics)
	srv := server.NewServer(addr, logger, registry, metrics)

	if c.Monitor {
		monitor := server.NewRoomMonitor(registry, os.Stdout, time.Duration(c.Interval)*time.Second)
		monitor.Start()
		defer monitor.Stop()
	}

	logger.Info("starting Liap Tui server",
		"addr", addr,
		"grace_period", cfg.GracePeriod(),
		"cooldown", cfg.Cooldown(),
		"audit", cfg.Audit.Enabled)

	ctx := shared.SetupSignalHandler(logger)

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(srv.Start)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return srv.Stop()
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}
