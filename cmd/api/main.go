package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ivr-platform/internal/audit"
	"ivr-platform/internal/auth"
	"ivr-platform/internal/config"
	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/ivr"
	"ivr-platform/internal/observability"
	"ivr-platform/internal/reporting"
	"ivr-platform/internal/routing"
	"ivr-platform/internal/session"
	"ivr-platform/pkg/logger"
	"ivr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// deps holds everything the routes need. Built once in main; no globals.
type deps struct {
	cfg       config.Config
	log       *slog.Logger
	engine    *ivr.Engine
	store     session.Store
	db        *sql.DB
	audit     *audit.Service
	overrides routing.OverrideStore
	reports   *reporting.Service
	auth      *auth.Manager
	registry  *prometheus.Registry
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	d := deps{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	d.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Call context store.
	var (
		memStore *session.MemoryStore
		rdb      *redis.Client
	)
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		d.store = session.NewRedisStore(rdb, session.RedisOptions{Prefix: cfg.Redis.KeyPrefix, IdleTTL: cfg.Session.IdleTTL})
	default:
		memStore = session.NewMemoryStore()
		d.store = memStore
	}

	// Audit trail: Postgres when configured, process memory otherwise.
	// Reports read the same trail.
	var auditRepo interface {
		audit.Repository
		reporting.Repository
	} = audit.NewMemoryRepo()
	if cfg.DB.Enabled() {
		d.db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer d.db.Close()
		pg := audit.NewPostgresRepo(d.db)
		if err := pg.Migrate(rootCtx); err != nil {
			log.Error("audit migrate failed", "err", err)
			os.Exit(1)
		}
		auditRepo = pg
	}
	d.audit = audit.NewService(auditRepo)
	d.reports = reporting.NewService(auditRepo)

	prompts := dialogue.DefaultPrompts()
	if cfg.IVR.PromptsFile != "" {
		prompts, err = dialogue.LoadPrompts(cfg.IVR.PromptsFile)
		if err != nil {
			log.Error("prompts load failed", "err", err, "path", cfg.IVR.PromptsFile)
			os.Exit(1)
		}
	}

	dests, err := routing.ParseDestinations(cfg.IVR.AgentTransferTargets)
	if err != nil {
		log.Error("agent transfer targets invalid", "err", err)
		os.Exit(1)
	}
	d.overrides = routing.NewMemoryOverrideStore()
	agents := routing.NewAgentRouter(dests, nil)
	agents.Overrides = routing.NewOverrideEngine(d.overrides, routing.AuditAdapter{Audit: d.audit})

	observers := []ivr.Observer{
		observability.NewMetrics(d.registry, d.store),
		ivr.AuditObserver{Audit: d.audit},
	}
	d.engine = ivr.NewEngine(d.store, ivr.Options{
		Machine:   dialogue.NewMachine(prompts),
		Transfer:  agents,
		Observers: observers,
	})

	if cfg.AdminEnabled() {
		d.auth, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, d)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("ivr listening", "addr", srv.Addr, "env", cfg.App.Env, "session_backend", cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// The redis backend expires idle contexts with key TTLs instead.
	if memStore != nil && cfg.Session.IdleTTL > 0 {
		sweeper := &session.Sweeper{
			Store:    memStore,
			IdleTTL:  cfg.Session.IdleTTL,
			Interval: cfg.Session.SweepInterval,
			Log:      log,
			OnEvict: func(callID string) {
				ctx := logger.With(gctx, log)
				for _, o := range observers {
					o.CallEnded(ctx, callID, ivr.EndReasonIdle)
				}
			},
		}
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Error("ivr stopped with error", "err", err)
		os.Exit(1)
	}
}
