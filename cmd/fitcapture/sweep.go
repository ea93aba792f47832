package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale sessions and retry unreconciled ones, once",
		Long:  "sweep runs a single maintenance pass. Use it from cron when the API runs with CAPTURE_SWEEP_INTERVAL=0.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.manager.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d\nreconciled: %d\n", res.Expired, res.Reconciled)
			return nil
		},
	}
}
