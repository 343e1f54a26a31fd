package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/regiomarkt/regiomarkt/internal/app"
	jobmetrics "github.com/regiomarkt/regiomarkt/internal/jobs"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
	"github.com/regiomarkt/regiomarkt/jobs"
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

	provider := mangopay.NewClient(cfg.MangopayBaseURL, cfg.MangopayClientID, cfg.MangopayAPIKey)
	sender := jobs.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
	metrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Mail:      jobs.NewSendEmailHandler(sender, metrics, logger),
		Payout:    jobs.NewPayoutHandler(provider, metrics, logger),
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
