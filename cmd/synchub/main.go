// Package main is the entry point of the development central server. It
// keeps every pushed record in memory and routes pulls by store and name.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sitesync/internal/config"
	"sitesync/internal/hub"
	v1 "sitesync/internal/infrastructure/http/v1"
	"sitesync/pkg/logger"
)

const version = "0.1.0"

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "synchub",
		Short:         "Development central sync server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to the YAML config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireHub(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	h, err := hub.New(cfg.Hub.Sites, log)
	if err != nil {
		return err
	}

	router := v1.NewRouter(v1.RouterConfig{
		App:     "synchub",
		Version: version,
		Logger:  log,
		Hub:     h,
	})

	server := &http.Server{
		Addr:         cfg.Hub.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("hub starting", "addr", cfg.Hub.Addr, "sites", h.Sites())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("hub failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down hub...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("hub forced to shutdown: %w", err)
	}

	log.Infow("hub stopped", "records", h.Len())
	return nil
}
