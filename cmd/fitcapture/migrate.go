package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fitcapture/pkg/environment"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			log := newLogger(environment.Parse(cfg.Env))
			pool, err := openPostgres(cmd.Context(), log)
			if err != nil {
				return err
			}
			pool.Close()
			log.InfoContext(cmd.Context(), "migrations applied")
			return nil
		},
	}
}
