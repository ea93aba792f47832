package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fitcapture",
		Short:         "Measurement capture sessions for fashion designers",
		Long:          "fitcapture issues single-use measurement links, accepts body measurements from capture devices and keeps each client's measurement ledger.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newTokenCmd(),
		newEventsCmd(),
	)
	return root
}
