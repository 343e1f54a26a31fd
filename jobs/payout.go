package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/regiomarkt/regiomarkt/internal/jobs"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
	"github.com/regiomarkt/regiomarkt/internal/settlement"
)

// PayoutProvider is the provider slice the payout handler needs.
type PayoutProvider interface {
	CreatePayOut(ctx context.Context, input mangopay.PayOutInput) (*mangopay.PayOut, error)
}

// PayoutScheduler enqueues payout tasks; it satisfies
// settlement.PayoutScheduler.
type PayoutScheduler struct {
	client *asynq.Client
}

// NewPayoutScheduler constructs the scheduler.
func NewPayoutScheduler(client *asynq.Client) *PayoutScheduler {
	return &PayoutScheduler{client: client}
}

// SchedulePayout enqueues a wallet-to-bank payout for the worker.
func (s *PayoutScheduler) SchedulePayout(ctx context.Context, req settlement.PayoutRequest) error {
	task, err := NewPayoutTask(PayoutPayload{
		AuthorID:      req.AuthorID,
		WalletID:      req.WalletID,
		BankAccountID: req.BankAccountID,
		AmountCents:   mangopay.ToCents(req.Amount),
		Currency:      req.Currency,
		Reference:     req.Reference,
	})
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, asynq.Queue(QueuePayouts), asynq.MaxRetry(5))
	return err
}

// NewPayoutHandler returns the worker-side handler for payout tasks.
// Provider errors are returned so asynq retries with backoff; a
// malformed payload is dropped.
func NewPayoutHandler(provider PayoutProvider, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (resultErr error) {
		tracker := metrics.Track(TaskTypeCreatePayout)
		defer func() {
			resultErr = tracker.End(resultErr)
		}()

		var payload PayoutPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("payout task payload unreadable", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if payload.WalletID == "" || payload.BankAccountID == "" {
			logger.Error("payout task misses routing data",
				slog.String("reference", payload.Reference))
			return asynq.SkipRetry
		}

		amount := decimal.New(payload.AmountCents, -2)
		payout, err := provider.CreatePayOut(ctx, mangopay.PayOutInput{
			AuthorID:        payload.AuthorID,
			DebitedWalletID: payload.WalletID,
			BankAccountID:   payload.BankAccountID,
			Amount:          amount,
			Fees:            decimal.Zero,
			Currency:        payload.Currency,
			Tag:             payload.Reference,
		})
		if err != nil {
			var transferErr *mangopay.TransferError
			if errors.As(err, &transferErr) {
				// A rejected payout will not pass on retry either.
				logger.Error("payout rejected by provider",
					slog.String("wallet_id", payload.WalletID),
					slog.String("code", transferErr.ResultCode))
				return fmt.Errorf("%v: %w", transferErr, asynq.SkipRetry)
			}
			return err
		}

		logger.Info("payout created",
			slog.String("payout_id", payout.ID),
			slog.String("wallet_id", payload.WalletID),
			slog.String("amount", amount.StringFixed(2)))
		return nil
	}
}
