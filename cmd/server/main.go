// Command server runs the rbac engine: the role and permission admin API,
// the authorization check endpoint, and the audit trail.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"accessd/internal/platform/config"
	"accessd/internal/platform/httpserver"
	"accessd/internal/platform/logger"
	"accessd/internal/platform/middleware"
	"accessd/internal/platform/postgres"
	platformredis "accessd/internal/platform/redis"
	"accessd/internal/rbac/auditstream"
	"accessd/internal/rbac/catalog"
	"accessd/internal/rbac/handler"
	"accessd/internal/rbac/metrics"
	"accessd/internal/rbac/service"
	"accessd/internal/rbac/snapshot"
	auditstore "accessd/internal/rbac/store/audit"
	rolestore "accessd/internal/rbac/store/role"
	"accessd/internal/rbac/usercount"
	"accessd/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when configured, in-memory otherwise.
	var (
		roles    service.RoleStore
		auditLog service.AuditStore
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		roles = rolestore.NewPostgres(db)
		auditLog = auditstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		roles = rolestore.NewInMemory()
		auditLog = auditstore.NewInMemory()
		log.Warn("no PG_DSN configured, using in-memory stores")
	}

	cat := catalog.New()
	if cfg.PermissionSeedPath != "" {
		if err := cat.LoadSeedFile(cfg.PermissionSeedPath); err != nil {
			return err
		}
		log.Info("loaded permission seed file", "path", cfg.PermissionSeedPath, "permissions", cat.Len())
	} else {
		if err := cat.RegisterDefaults(); err != nil {
			return err
		}
		log.Info("registered default permission matrix", "permissions", cat.Len())
	}

	m := metrics.New()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithUserCounter(usercount.NewStatic()),
	}

	// Redis and Kafka connect concurrently; neither depends on the other.
	var (
		redisClient *redis.Client
		stream      *auditstream.Publisher
	)
	var connect errgroup.Group
	connect.Go(func() error {
		var err error
		redisClient, err = platformredis.Connect(ctx, cfg.RedisURL)
		return err
	})
	connect.Go(func() error {
		if len(cfg.KafkaBrokers) == 0 {
			return nil
		}
		var err error
		stream, err = auditstream.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		return err
	})
	if err := connect.Wait(); err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithMirror(snapshot.NewRedisMirror(redisClient)))
		log.Info("snapshot mirror enabled")
	}
	if stream != nil {
		defer stream.Close()
		opts = append(opts, service.WithStream(stream))
		log.Info("audit stream enabled", "topic", cfg.KafkaTopic)
	}

	svc := service.New(roles, auditLog, cat, snapshot.NewPublisher(), opts...)

	// System roles and the warm snapshot must exist before the first request.
	if err := svc.EnsureSystemRoles(ctx); err != nil {
		return err
	}
	if err := svc.WarmSnapshot(ctx); err != nil {
		return err
	}

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	api := handler.New(svc, log)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, cfg.AdminToken, log))
		api.Register(r, middleware.RequirePermission(svc, "rbac.manage", log))
	})

	srv := httpserver.New(cfg.Addr, router, cfg.ReadTimeout, cfg.WriteTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting accessd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
