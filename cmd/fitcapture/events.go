package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fitcapture/pkg/config"
	"github.com/dmitrymomot/fitcapture/pkg/redis"
)

func newEventsCmd() *cobra.Command {
	var eventType string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream session lifecycle events from Redis as JSON lines",
		Long:  "events subscribes to REDIS_EVENTS_CHANNEL and prints every message until interrupted. Only events published while it runs are shown.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var redisCfg redis.Config
			if err := config.Load(&redisCfg); err != nil {
				return err
			}
			rdb, err := redis.Connect(cmd.Context(), redisCfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			messages, err := redis.NewPublisher(rdb, redisCfg.EventsChannel).Subscribe(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for msg := range messages {
				if eventType != "" && msg.Type != eventType {
					continue
				}
				if err := enc.Encode(msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "only print events of this type, e.g. session.completed")
	return cmd
}
