package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lyceum-platform/lyceum/internal/app"
	"github.com/lyceum-platform/lyceum/internal/auth"
	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/authz/pgstore"
	"github.com/lyceum-platform/lyceum/internal/classes"
	"github.com/lyceum-platform/lyceum/internal/observability"
	"github.com/lyceum-platform/lyceum/internal/orgs"
	"github.com/lyceum-platform/lyceum/internal/platform/cache"
	"github.com/lyceum-platform/lyceum/internal/platform/db"
	"github.com/lyceum-platform/lyceum/internal/roles"
	"github.com/lyceum-platform/lyceum/internal/schools"
	"github.com/lyceum-platform/lyceum/internal/taxonomy"
	"github.com/lyceum-platform/lyceum/internal/users"
	"github.com/lyceum-platform/lyceum/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	reader := pgstore.NewReader(pool)
	memberships := pgstore.NewCachedReader(reader, redisClient, cfg.MembershipCacheTTL)
	roleResolver := authz.NewRoleResolver(reader)
	evaluator := authz.NewEvaluator(memberships, roleResolver).WithMetrics(metrics)
	graph := authz.NewGraph(memberships, roleResolver)
	scopes := authz.NewScopeResolver(graph, cfg.ScopeCollapseSubsets).WithMetrics(metrics)

	enqueuer := jobs.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	orgsService := orgs.NewService(orgs.NewRepository(pool), evaluator, scopes, memberships, enqueuer, logger)
	schoolsService := schools.NewService(schools.NewRepository(pool), evaluator, scopes, memberships, enqueuer, logger)
	classesService := classes.NewService(classes.NewRepository(pool), evaluator, scopes, logger)
	usersService := users.NewService(users.NewRepository(pool), scopes, logger)
	rolesService := roles.NewService(roles.NewRepository(pool), evaluator, logger)
	taxonomyService := taxonomy.NewService(taxonomy.NewRepository(pool), evaluator, scopes, logger)

	tokens := auth.NewTokenStore(redisClient)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Auth:            auth.Middleware{Store: tokens, Logger: logger},
		OrgsHandler:     orgs.NewHandler(logger, orgsService),
		SchoolsHandler:  schools.NewHandler(logger, schoolsService),
		ClassesHandler:  classes.NewHandler(logger, classesService),
		UsersHandler:    users.NewHandler(logger, usersService),
		RolesHandler:    roles.NewHandler(logger, rolesService),
		TaxonomyHandler: taxonomy.NewHandler(logger, taxonomyService),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
