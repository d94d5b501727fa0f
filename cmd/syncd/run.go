package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sitesync/internal/app"
	v1 "sitesync/internal/infrastructure/http/v1"
	"sitesync/internal/infrastructure/http/v1/handlers"
)

const version = "0.1.0"

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run sync cycles on a timer until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts)
		},
	}
}

func runDaemon(opts *rootOptions) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Infow("starting sync daemon",
		"sites", rt.Scheduler.Sites(),
		"interval", cfg.Interval(),
		"remote", cfg.Remote.URL,
		"in_process_hub", rt.Hub != nil,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = rt.Scheduler.Run(ctx)
	}()

	var server *http.Server
	if cfg.Status.Addr != "" {
		checks := make(map[string]handlers.Pinger)
		for id, b := range rt.Backends() {
			checks[id] = b
		}
		routerCfg := v1.RouterConfig{
			App:       "syncd",
			Version:   version,
			Logger:    log,
			Checks:    checks,
			Scheduler: rt.Scheduler,
		}
		if rt.Hub != nil {
			routerCfg.Hub = rt.Hub
		}
		server = &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      v1.NewRouter(routerCfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Infow("status endpoint starting", "addr", cfg.Status.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("status endpoint failed", "error", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down sync daemon...")

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("status endpoint forced to shutdown", "error", err)
		}
	}

	// Active cycles finish their current phase before Run returns.
	cancel()
	wg.Wait()

	log.Info("sync daemon stopped")
	return nil
}
