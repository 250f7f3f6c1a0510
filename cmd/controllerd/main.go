// Command controllerd runs the tunnelctl control plane: the agent bus Newt
// and Olm edge agents connect to, the reconcilers that keep DNS-authority
// and auth-proxy config in sync with persisted state, and the small
// internal HTTP surface used for session validation and operational
// status.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tunnelctl/controller/internal/infra/config"
	"github.com/tunnelctl/controller/internal/infra/logger"
	"github.com/tunnelctl/controller/internal/infra/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("TUNNELCTL_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	if len(cfg.MergedIncludePaths) > 0 {
		log.Info("config includes merged", "paths", cfg.MergedIncludePaths)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	a, cleanup, err := wire(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	defer cleanup()

	resyncStop := startResync(ctx, cfg.Resync, a, log)
	defer resyncStop()

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil {
			log.Error("internal http server error", "error", err)
		}
	}()

	log.Info("controllerd starting",
		"bus_addr", cfg.Bus.Addr,
		"internal_port", cfg.Server.InternalPort,
		"resync_enabled", cfg.Resync.Enabled,
	)

	go func() {
		if err := a.busServer.Start(ctx); err != nil {
			log.Error("agent bus server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("controllerd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("internal http server shutdown error", "error", err)
	}
	// a.busServer.Start already stops itself on ctx cancellation.

	return nil
}
