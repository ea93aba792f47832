package capture

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/fitcapture/handler"
	"github.com/dmitrymomot/fitcapture/pkg/jwt"
	"github.com/dmitrymomot/fitcapture/pkg/limits"
	"github.com/dmitrymomot/fitcapture/pkg/logger"
	"github.com/dmitrymomot/fitcapture/pkg/ratelimiter"
	capturesvc "github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

// Options wires the module. Limiter and ClientKey are optional; the rest are
// required. ClientKey defaults to the TCP peer address.
type Options struct {
	Manager   *capturesvc.Manager
	Clients   *clients.Service
	Limits    *limits.Service
	Auth      *jwt.Service
	Limiter   *ratelimiter.Bucket
	ClientKey ratelimiter.KeyFunc
	Logger    *slog.Logger
}

// Router mounts the capture endpoints.
//
// Public, addressed by link code and rate limited per client:
//
//	GET  /m/{code}
//	POST /m/{code}/measurements
//
// Designer, bearer token required:
//
//	POST /sessions
//	GET  /sessions
//	POST /sessions/{code}/promote
//	POST /sessions/{code}/reconcile
//	POST /sessions/{code}/fail
//	POST /clients
//	GET  /clients
//	GET  /clients/{id}
//	POST /clients/{id}/measurements
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/", capture.Router(capture.Options{Manager: m, Clients: c, Limits: l, Auth: a}))
func Router(opts Options) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("http.capture"))

	h := &handlers{
		manager: opts.Manager,
		clients: opts.Clients,
		limits:  opts.Limits,
		errors:  handler.NewErrorHandler[handler.Context](log, mapError),
	}

	r := chi.NewRouter()

	r.Group(func(public chi.Router) {
		if opts.Limiter != nil {
			public.Use(ratelimiter.Middleware(opts.Limiter, opts.ClientKey, h.rateLimited()))
		}
		public.Get("/m/{code}", wrap(h, h.resolve, pathBinder))
		public.Post("/m/{code}/measurements", wrap(h, h.submit, pathBinder, jsonBinder))
	})

	r.Group(func(designer chi.Router) {
		designer.Use(jwt.Middleware(opts.Auth, h.unauthorized))
		designer.Use(planContext)

		designer.Route("/sessions", func(r chi.Router) {
			r.Post("/", wrap(h, h.issue, jsonBinder))
			r.Get("/", wrap(h, h.list, queryBinder))
			r.Post("/{code}/promote", wrap(h, h.promote, pathBinder, jsonBinder))
			r.Post("/{code}/reconcile", wrap(h, h.reconcile, pathBinder))
			r.Post("/{code}/fail", wrap(h, h.fail, pathBinder, jsonBinder))
		})

		designer.Route("/clients", func(r chi.Router) {
			r.Post("/", wrap(h, h.createClient, jsonBinder))
			r.Get("/", wrap(h, h.listClients))
			r.Get("/{id}", wrap(h, h.getClient, pathBinder))
			r.Post("/{id}/measurements", wrap(h, h.recordManual, pathBinder, jsonBinder))
		})
	})

	return r
}

// planContext copies the plan claim into the limits context.
func planContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := jwt.ClaimsFromContext(r.Context()); ok && claims.PlanID != "" {
			r = r.WithContext(limits.WithPlanID(r.Context(), claims.PlanID))
		}
		next.ServeHTTP(w, r)
	})
}

func wrap[R any](h *handlers, fn handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(fn,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](h.errors),
	)
}
