package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/inkpress/inkpress/cmd/inkpress/cli"
	"github.com/inkpress/inkpress/internal/app"
	"github.com/inkpress/inkpress/internal/audit"
	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/categories"
	"github.com/inkpress/inkpress/internal/comments"
	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
	"github.com/inkpress/inkpress/internal/observability"
	"github.com/inkpress/inkpress/internal/platform/cache"
	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/posts"
	"github.com/inkpress/inkpress/internal/rbac"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
	"github.com/inkpress/inkpress/internal/tags"
	"github.com/inkpress/inkpress/internal/users"
	"github.com/inkpress/inkpress/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := cache.Options{Addr: cfg.RedisAddr}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cache.QueueOpt(redisOpts))
		code := cli.RunJobs(ctx, jobsCLI, os.Args[2:], os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	}

	if err := serve(ctx, cfg, logger, redisOpts); err != nil {
		logger.Error("inkpress exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger, redisOpts cache.Options) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	queue := jobs.NewClient(cache.QueueOpt(redisOpts))
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(queue, logger, jobMetrics)

	inspector := asynq.NewInspector(cache.QueueOpt(redisOpts))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	files := storage.NewLocal(cfg.MediaRoot, cfg.MediaURL)
	auditLogger := shared.NewAuditLogger()
	rbacMiddleware := rbac.Middleware{Metrics: metrics, Logger: logger}

	authService := auth.NewService(auth.ServiceConfig{
		Repo:        auth.NewRepository(dbpool),
		Tokens:      auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		OTPs:        shared.NewTokenStore(redisClient, "otp", cfg.OTPTTL),
		ResetTokens: shared.NewTokenStore(redisClient, "reset", cfg.ResetTokenTTL),
		Notifier:    notifier,
		Logger:      logger,
	})

	usersService := users.NewService(users.NewRepository(dbpool, auditLogger), files, notifier, metrics, logger)
	postsService := posts.NewService(posts.NewRepository(dbpool, auditLogger), files, notifier, metrics, logger)
	commentsService := comments.NewService(comments.NewRepository(dbpool), metrics)
	categoriesService := categories.NewService(categories.NewRepository(dbpool), files, metrics, logger)
	tagsService := tags.NewService(tags.NewRepository(dbpool), metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Authentication:    &auth.Middleware{Service: authService, Logger: logger},
		AuthHandler:       auth.NewHandler(logger, authService),
		UsersHandler:      users.NewHandler(logger, usersService, cfg.BaseURL, cfg.UploadMaxBytes),
		PostsHandler:      posts.NewHandler(logger, postsService, cfg.BaseURL, cfg.UploadMaxBytes),
		CommentsHandler:   comments.NewHandler(logger, commentsService),
		CategoriesHandler: categories.NewHandler(logger, categoriesService, rbacMiddleware, cfg.BaseURL, cfg.UploadMaxBytes),
		TagsHandler:       tags.NewHandler(logger, tagsService, rbacMiddleware),
		AuditHandler:      audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool), metrics), rbacMiddleware),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
