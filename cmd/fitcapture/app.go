package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fitcapture/migrations"
	"github.com/dmitrymomot/fitcapture/pkg/config"
	"github.com/dmitrymomot/fitcapture/pkg/environment"
	"github.com/dmitrymomot/fitcapture/pkg/httpserver"
	"github.com/dmitrymomot/fitcapture/pkg/jwt"
	"github.com/dmitrymomot/fitcapture/pkg/limits"
	"github.com/dmitrymomot/fitcapture/pkg/logger"
	"github.com/dmitrymomot/fitcapture/pkg/pg"
	"github.com/dmitrymomot/fitcapture/pkg/ratelimiter"
	"github.com/dmitrymomot/fitcapture/pkg/redis"
	"github.com/dmitrymomot/fitcapture/pkg/requestid"
	"github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

const serviceName = "fitcapture"

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	Storage      string `env:"APP_STORAGE" envDefault:"postgres"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	PlansFile    string `env:"PLANS_FILE" envDefault:"plans.yaml"`
	DefaultPlan  string `env:"PLANS_DEFAULT"`
}

type authConfig struct {
	Secret string `env:"AUTH_JWT_SECRET,required"`
	Issuer string `env:"AUTH_JWT_ISSUER" envDefault:"fitcapture"`
}

// app holds the wired services. close releases connections in reverse order.
type app struct {
	cfg     appConfig
	log     *slog.Logger
	pool    *pgxpool.Pool
	rdb     *goredis.Client
	manager *capture.Manager
	capture capture.Config
	clients *clients.Service
	limits  *limits.Service
	limiter *ratelimiter.Bucket
	checks  []httpserver.Check
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(env environment.Environment) *slog.Logger {
	log := logger.New(
		logger.WithEnvironment(env, serviceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	slog.SetDefault(log)
	return log
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.Storage {
	case storagePostgres, storageMemory:
	default:
		return cfg, fmt.Errorf("APP_STORAGE must be %q or %q, got %q", storagePostgres, storageMemory, cfg.Storage)
	}
	return cfg, nil
}

// openPostgres connects the pool and applies pending migrations.
func openPostgres(ctx context.Context, log *slog.Logger) (*pgxpool.Pool, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// wire builds every service the commands need from the environment.
func wire(ctx context.Context) (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(environment.Parse(cfg.Env))}

	if err := a.wireStorage(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.wireLimits(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireStorage(ctx context.Context) error {
	var captureCfg capture.Config
	if err := config.Load(&captureCfg); err != nil {
		return err
	}
	a.capture = captureCfg

	var (
		sessions capture.Store
		ledger   clients.Store
	)
	switch a.cfg.Storage {
	case storagePostgres:
		pool, err := openPostgres(ctx, a.log)
		if err != nil {
			return err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		a.checks = append(a.checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})
		sessions = capture.NewPGStore(pool)
		ledger = clients.NewPGStore(pool)
	default:
		a.log.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		sessions = capture.NewMemoryStore()
		ledger = clients.NewMemoryStore()
	}

	var rlCfg ratelimiter.Config
	if err := config.Load(&rlCfg); err != nil {
		return err
	}
	opts := []capture.Option{capture.WithLogger(a.log)}
	var rlStore ratelimiter.Store = ratelimiter.NewMemoryStore()
	if a.cfg.RedisEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		rdb, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		a.rdb = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(rdb)})
		opts = append(opts, capture.WithPublisher(redis.NewPublisher(rdb, redisCfg.EventsChannel)))
		rlStore = ratelimiter.NewRedisStore(rdb, serviceName+":ratelimit:")
	}

	limiter, err := ratelimiter.NewBucket(rlStore, rlCfg)
	if err != nil {
		return err
	}
	a.limiter = limiter

	a.clients = clients.NewService(ledger, clients.WithLogger(a.log))
	manager, err := capture.NewManager(sessions, a.clients, captureCfg, opts...)
	if err != nil {
		return err
	}
	a.manager = manager
	return nil
}

func (a *app) wireLimits(ctx context.Context) error {
	opts := []limits.Option{
		limits.WithCounter(limits.ResourceCaptureSessions, a.manager.IssuedThisMonth),
		limits.WithCounter(limits.ResourceClients, a.clients.Count),
	}
	if a.cfg.DefaultPlan != "" {
		opts = append(opts, limits.WithDefaultPlan(a.cfg.DefaultPlan))
	}
	svc, err := limits.NewService(ctx, limits.FileSource{Path: a.cfg.PlansFile}, opts...)
	if err != nil {
		return errors.Join(fmt.Errorf("plans file %q", a.cfg.PlansFile), err)
	}
	a.limits = svc
	return nil
}

func loadAuth() (*jwt.Service, error) {
	var cfg authConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return jwt.New(cfg.Secret, cfg.Issuer)
}
