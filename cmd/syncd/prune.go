package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sitesync/internal/app"
)

func newPruneCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete changelog entries every known site has acknowledged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, site := range rt.Sites {
				n, err := site.Driver.PruneAcknowledged(ctx)
				if err != nil {
					return fmt.Errorf("prune site %s: %w", site.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: pruned %d changelog entries\n", site.ID, n)
			}
			return nil
		},
	}
}
