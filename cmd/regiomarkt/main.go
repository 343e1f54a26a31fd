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

	"github.com/regiomarkt/regiomarkt/internal/app"
	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
	"github.com/regiomarkt/regiomarkt/internal/notify"
	"github.com/regiomarkt/regiomarkt/internal/observability"
	"github.com/regiomarkt/regiomarkt/internal/orders"
	"github.com/regiomarkt/regiomarkt/internal/platform/cache"
	"github.com/regiomarkt/regiomarkt/internal/platform/db"
	"github.com/regiomarkt/regiomarkt/internal/settlement"
	"github.com/regiomarkt/regiomarkt/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	notifier, err := notify.NewService(asynqClient, cfg.Currency, logger)
	if err != nil {
		logger.Error("init notifier", slog.Any("error", err))
		os.Exit(1)
	}

	provider := mangopay.NewClient(cfg.MangopayBaseURL, cfg.MangopayClientID, cfg.MangopayAPIKey)

	docRepo := documents.NewRepository(dbpool)
	orderRepo := orders.NewRepository(dbpool)
	completer := orders.NewCompletionTracker(orderRepo, docRepo, logger)

	payer := settlement.NewPayer(docRepo, provider, cfg.Currency, logger)
	payouts := jobs.NewPayoutScheduler(asynqClient)
	fees := settlement.NewFeeSplitter(docRepo, provider, payer, payouts, notifier, settlement.PlatformConfig{
		GlobalOwnerUserID:        cfg.PlatformUserID,
		GlobalOwnerWalletID:      cfg.PlatformWalletID,
		GlobalOwnerBankAccountID: cfg.PlatformBankAccountID,
		GlobalOwnerEmail:         cfg.PlatformEmail,
		Currency:                 cfg.Currency,
		FeesChargedAtPayin:       cfg.FeesChargedAtPayin,
	}, logger)

	events := settlement.NewRedisEventStore(redisClient, cfg.WebhookDedupTTL)

	service := settlement.NewService(settlement.ServiceParams{
		Config: settlement.Config{
			Currency:            cfg.Currency,
			ProviderFeeWalletID: cfg.ProviderFeeWalletID,
			AdminEmails:         cfg.AdminRecipients(),
		},
		Documents: docRepo,
		Provider:  provider,
		Payer:     payer,
		Fees:      fees,
		Completer: completer,
		Notifier:  notifier,
		Events:    events,
		Payees:    docRepo,
		Logger:    logger,
	})

	jobHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SettlementHandler: settlement.NewHandler(service, logger),
		JobHandler:        jobHandler,
		Pool:              dbpool,
		Metrics:           observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server started", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
