// Package main is the entry point of the site sync daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitesync/internal/config"
	"sitesync/pkg/logger"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Site       string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "syncd",
		Short:         "Site sync daemon",
		Long:          "Pushes local changes to the central server, pulls and integrates remote changes and derives follow-up records.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", getEnv(config.EnvPrefix+"CONFIG", ""), "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Site, "site", "", "restrict the command to one site")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newOnceCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newPruneCommand(opts))

	return cmd
}

// load reads the configuration and narrows it to --site when set.
func load(opts *rootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.Site != "" {
		if err := restrictTo(cfg, opts.Site); err != nil {
			return nil, nil, err
		}
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return cfg, log, nil
}

func restrictTo(cfg *config.Config, siteID string) error {
	for _, s := range cfg.LocalSites() {
		if s.SiteID == siteID {
			cfg.Sites = []config.SiteConfig{s}
			return nil
		}
	}
	return fmt.Errorf("site %q is not configured", siteID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
