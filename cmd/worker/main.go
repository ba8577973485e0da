package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/inkpress/inkpress/internal/app"
	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
	"github.com/inkpress/inkpress/internal/mail"
	"github.com/inkpress/inkpress/internal/platform/cache"
	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/view"
	"github.com/inkpress/inkpress/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	templates, err := view.NewEngine("inkpress")
	if err != nil {
		logger.Error("parse email templates", slog.Any("error", err))
		os.Exit(1)
	}

	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	metrics := jobmetrics.NewMetrics(nil)
	emailJob := jobs.NewSendEmailJob(templates, sender, logger, metrics)
	sweepJob := jobs.NewMediaSweepJob(jobs.NewPGMediaReferences(pool), cfg.MediaRoot, cfg.MediaURL, logger, metrics)

	sweepTask, err := jobs.NewMediaSweepTask(24*time.Hour, false)
	if err != nil {
		logger.Error("build media sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cache.QueueOpt(cache.Options{Addr: cfg.RedisAddr}),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskMediaSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
