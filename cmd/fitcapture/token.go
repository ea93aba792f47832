package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newTokenCmd issues designer tokens for local development and support.
func newTokenCmd() *cobra.Command {
	var (
		owner string
		plan  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a designer access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := uuid.New()
			if owner != "" {
				var err error
				if id, err = uuid.Parse(owner); err != nil {
					return fmt.Errorf("invalid --owner: %w", err)
				}
			}
			auth, err := loadAuth()
			if err != nil {
				return err
			}
			tok, err := auth.Generate(id, plan, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "owner: %s\ntoken: %s\n", id, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "designer id (random when empty)")
	cmd.Flags().StringVar(&plan, "plan", "free", "plan id carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
