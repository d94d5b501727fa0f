package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sitesync/internal/app"
	"sitesync/internal/sync/status"
)

func newOnceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run one sync cycle per site and print the run status",
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

			statuses := make([]*status.RunStatus, 0, len(rt.Sites))
			failed := 0
			for _, site := range rt.Sites {
				run, err := site.Driver.RunCycle(ctx)
				if err != nil {
					failed++
				}
				statuses = append(statuses, run)
			}

			out, err := json.MarshalIndent(statuses, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if failed > 0 {
				return fmt.Errorf("%d of %d sync cycles failed", failed, len(rt.Sites))
			}
			return nil
		},
	}
}
