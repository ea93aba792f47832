package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	capturemod "github.com/dmitrymomot/fitcapture/modules/capture"
	"github.com/dmitrymomot/fitcapture/pkg/clientip"
	"github.com/dmitrymomot/fitcapture/pkg/config"
	"github.com/dmitrymomot/fitcapture/pkg/httpserver"
	"github.com/dmitrymomot/fitcapture/pkg/logger"
	"github.com/dmitrymomot/fitcapture/pkg/requestid"
	"github.com/dmitrymomot/fitcapture/svc/capture"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	a, err := wire(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	auth, err := loadAuth()
	if err != nil {
		return err
	}
	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	var ipCfg clientip.Config
	if err := config.Load(&ipCfg); err != nil {
		return err
	}
	ips := clientip.New(ipCfg.TrustedHeaders...)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(ips.Middleware)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, 2*time.Second, a.checks...))
	r.Mount("/", capturemod.Router(capturemod.Options{
		Manager:   a.manager,
		Clients:   a.clients,
		Limits:    a.limits,
		Auth:      auth,
		Limiter:   a.limiter,
		ClientKey: clientip.Key,
		Logger:    a.log,
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweeper := capture.NewSweeper(a.manager, a.capture.SweepInterval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.ErrorContext(ctx, "sweeper stopped", logger.Error(err))
		}
	}()

	srv := httpserver.New(srvCfg, httpserver.WithLogger(a.log))
	err = srv.Run(ctx, r)
	cancel()
	<-done
	return err
}
