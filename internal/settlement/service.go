package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
	"github.com/regiomarkt/regiomarkt/internal/money"
)

// Config holds the orchestrator's injected configuration.
type Config struct {
	Currency string
	// ProviderFeeWalletID is the provider's internal fee wallet;
	// payout events originating from it are ignored.
	ProviderFeeWalletID string
	AdminEmails         []string
}

// Service is the webhook entry point of the settlement engine. It
// classifies the event, fetches authoritative state from the provider
// and drives the waterfall, the fee split and order completion.
type Service struct {
	cfg       Config
	docs      DocumentRepo
	provider  Provider
	payer     *Payer
	fees      *FeeSplitter
	completer Completer
	notifier  Notifier
	events    EventStore
	payees    PayeeDirectory
	logger    *slog.Logger
}

// ServiceParams groups the orchestrator's dependencies.
type ServiceParams struct {
	Config    Config
	Documents DocumentRepo
	Provider  Provider
	Payer     *Payer
	Fees      *FeeSplitter
	Completer Completer
	Notifier  Notifier
	Events    EventStore
	Payees    PayeeDirectory
	Logger    *slog.Logger
}

// NewService constructs the orchestrator.
func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:       p.Config,
		docs:      p.Documents,
		provider:  p.Provider,
		payer:     p.Payer,
		fees:      p.Fees,
		completer: p.Completer,
		notifier:  p.Notifier,
		events:    p.Events,
		payees:    p.Payees,
		logger:    p.Logger,
	}
}

// HandleEvent processes one webhook delivery. A nil return means the
// event is handled (including handled-as-no-op); any error surfaces as
// a 5xx so the provider redelivers.
func (s *Service) HandleEvent(ctx context.Context, event mangopay.EventType, resourceID string) error {
	key := fmt.Sprintf("%s:%s", event, resourceID)
	if s.events != nil {
		done, err := s.events.Processed(ctx, key)
		if err != nil {
			// Dedup is best effort; the document locks stay authoritative.
			s.logger.Warn("event store unavailable", slog.Any("error", err))
		} else if done {
			s.logger.Info("event already processed", slog.String("event", key))
			return nil
		}
	}

	if err := s.dispatch(ctx, event, resourceID); err != nil {
		return err
	}

	// Marked only after a clean run. A run that errored or crashed
	// leaves the event open, so the provider's redelivery retries it.
	if s.events != nil {
		if err := s.events.MarkProcessed(ctx, key); err != nil {
			s.logger.Warn("event mark failed", slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event mangopay.EventType, resourceID string) error {
	switch event {
	case mangopay.EventPayinSucceeded:
		return s.handlePayinSucceeded(ctx, resourceID)
	case mangopay.EventPayinFailed:
		return s.handlePayinFailed(ctx, resourceID)
	case mangopay.EventPayoutSucceeded, mangopay.EventPayoutFailed:
		return s.handlePayout(ctx, event, resourceID)
	case mangopay.EventKYCSucceeded, mangopay.EventKYCFailed:
		return s.notifyAdmins(ctx, "KYC status changed", "admin_kyc", map[string]any{
			"Event":      string(event),
			"ResourceID": resourceID,
		})
	default:
		return fmt.Errorf("settlement: unsupported event type %q", event)
	}
}

func (s *Service) handlePayinSucceeded(ctx context.Context, payinID string) error {
	payin, err := s.provider.PayIn(ctx, payinID)
	if err != nil {
		return err
	}
	// The webhook body is untrusted; only the provider's own record of
	// the pay-in decides whether money actually arrived.
	if payin.Status != mangopay.StatusSucceeded {
		s.logger.Warn("payin webhook for non-succeeded payin",
			slog.String("payin_id", payinID),
			slog.String("status", payin.Status))
		return s.notifyAdmins(ctx, "Pay-in webhook mismatch", "admin_payin_mismatch", map[string]any{
			"PayinID": payinID,
			"Status":  payin.Status,
		})
	}

	wallet, err := s.provider.Wallet(ctx, payin.CreditedWalletID)
	if err != nil {
		return err
	}
	if wallet.Currency != s.cfg.Currency {
		return s.notifyAdmins(ctx, "Pay-in in unsupported currency", "admin_payment_error", map[string]any{
			"PayinID": payinID,
			"Detail":  fmt.Sprintf("wallet %s holds %s, expected %s", wallet.ID, wallet.Currency, s.cfg.Currency),
		})
	}
	buyerUserID := wallet.OwnerID()

	confirmations, err := s.docs.UnpaidOrderConfirmations(ctx, buyerUserID)
	if err != nil {
		return err
	}
	if len(confirmations) == 0 {
		s.logger.Info("payin without open orders", slog.String("payin_id", payinID))
		return s.checkLeftoverBalance(ctx, payin, wallet.ID)
	}

	// Oldest order first. Funds always go to the oldest unpaid order
	// before any newer one.
	for _, conf := range confirmations {
		balance, err := s.walletBalance(ctx, wallet.ID)
		if err != nil {
			return err
		}
		required, err := s.unpaidAmount(ctx, conf.OrderID)
		if err != nil {
			return err
		}
		if balance.LessThan(required) {
			// Not an error: the remaining orders wait for the next pay-in.
			s.logger.Info("insufficient balance, deferring remaining orders",
				slog.Int64("order_id", conf.OrderID),
				slog.String("balance", balance.StringFixed(2)),
				slog.String("required", required.StringFixed(2)))
			return nil
		}
		if err := s.settleOrder(ctx, conf, payin, wallet.ID, buyerUserID); err != nil {
			// The order's remaining waterfall aborts; already paid
			// documents stay paid and the next order proceeds.
			s.reportOrderFailure(ctx, conf.OrderID, err)
			continue
		}
	}

	return s.checkLeftoverBalance(ctx, payin, wallet.ID)
}

// settleOrder pays one order's invoices from the buyer wallet:
// logistics and producer invoices first, then the platform fee split,
// then the completion check.
func (s *Service) settleOrder(ctx context.Context, conf *documents.Document, payin *mangopay.PayIn, buyerWallet, buyerUserID string) error {
	reference := payin.ID
	invoices, err := s.docs.UnpaidByTypes(ctx, conf.OrderID,
		documents.TypeLogisticsInvoice, documents.TypeProducerInvoice)
	if err != nil {
		return err
	}
	sort.Slice(invoices, func(i, j int) bool {
		pi, pj := invoices[i].Type.SettlementPriority(), invoices[j].Type.SettlementPriority()
		if pi != pj {
			return pi < pj
		}
		return invoices[i].ID < invoices[j].ID
	})

	for _, doc := range invoices {
		err := s.payer.Pay(ctx, doc, buyerUserID, buyerWallet, doc.Seller.WalletID,
			doc.Gross(), decimal.Zero, reference)
		var dup *DuplicateTransferError
		if errors.As(err, &dup) {
			s.logger.Info("skipping document", slog.String("reason", dup.Reason),
				slog.Int64("document_id", dup.DocumentID))
			continue
		}
		if err != nil {
			return err
		}
		if err := s.docs.SetProviderPayin(ctx, doc.ID, payin.ID); err != nil {
			s.logger.Warn("recording payin reference failed",
				slog.Int64("document_id", doc.ID), slog.Any("error", err))
		}
	}

	orderGross := money.PriceGross(conf.Lines)
	err = s.fees.Settle(ctx, conf.OrderID, orderGross, buyerUserID, buyerWallet, reference)
	var dup *DuplicateTransferError
	if err != nil && !errors.As(err, &dup) {
		return err
	}

	_, err = s.completer.TryComplete(ctx, conf.OrderID, reference)
	return err
}

// unpaidAmount sums the gross of the order's still-unpaid invoices.
// The buyer platform invoice is netted inside the fee split and does
// not claim wallet balance of its own.
func (s *Service) unpaidAmount(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	docs, err := s.docs.UnpaidForOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, doc := range docs {
		if !doc.Type.IsInvoice() || doc.Type == documents.TypeBuyerPlatformInvoice {
			continue
		}
		total = total.Add(doc.Gross())
	}
	return total, nil
}

func (s *Service) walletBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	wallet, err := s.provider.Wallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance.Decimal(), nil
}

// checkLeftoverBalance flags funds that no unpaid order claims. The
// engine never auto-corrects this; an admin has to look at it.
func (s *Service) checkLeftoverBalance(ctx context.Context, payin *mangopay.PayIn, walletID string) error {
	balance, err := s.walletBalance(ctx, walletID)
	if err != nil {
		return err
	}
	if !balance.IsPositive() {
		return nil
	}
	return s.notifyAdmins(ctx, "Payer has unapplied funds", "admin_unapplied_funds", map[string]any{
		"PayinID": payin.ID,
		"Wallet":  walletID,
		"Balance": balance,
	})
}

func (s *Service) handlePayinFailed(ctx context.Context, payinID string) error {
	payin, err := s.provider.PayIn(ctx, payinID)
	if err != nil {
		return err
	}
	return s.notifyAdmins(ctx, "Pay-in failed", "admin_payin_failed", map[string]any{
		"PayinID": payinID,
		"Code":    payin.ResultCode,
		"Message": payin.ResultMessage,
	})
}

func (s *Service) handlePayout(ctx context.Context, event mangopay.EventType, payoutID string) error {
	payout, err := s.provider.PayOut(ctx, payoutID)
	if err != nil {
		return err
	}
	if payout.DebitedWalletID == s.cfg.ProviderFeeWalletID {
		return nil
	}
	wallet, err := s.provider.Wallet(ctx, payout.DebitedWalletID)
	if err != nil {
		return err
	}
	email, err := s.payees.EmailForProviderUser(ctx, wallet.OwnerID())
	if err != nil {
		s.logger.Warn("payout owner not resolvable",
			slog.String("payout_id", payoutID), slog.Any("error", err))
		return s.notifyAdmins(ctx, "Payout owner unknown", "admin_payout_unresolved", map[string]any{
			"PayoutID": payoutID,
			"Wallet":   payout.DebitedWalletID,
		})
	}

	if event == mangopay.EventPayoutSucceeded {
		return s.notifier.Notify(ctx, []string{email}, "Payout completed", "payee_payout_succeeded", map[string]any{
			"Amount":    payout.DebitedFunds.Decimal(),
			"Reference": payout.Tag,
		})
	}
	return s.notifier.Notify(ctx, []string{email}, "Payout failed", "payee_payout_failed", map[string]any{
		"Amount":  payout.DebitedFunds.Decimal(),
		"Code":    payout.ResultCode,
		"Message": payout.ResultMessage,
	})
}

func (s *Service) reportOrderFailure(ctx context.Context, orderID int64, err error) {
	s.logger.Error("order settlement aborted",
		slog.Int64("order_id", orderID), slog.Any("error", err))

	data := map[string]any{"OrderID": orderID, "Detail": err.Error()}
	var payErr *PaymentError
	var transferFailed *TransferFailedError
	switch {
	case errors.As(err, &payErr):
		data["DocumentID"] = payErr.DocumentID
	case errors.As(err, &transferFailed):
		data["DocumentID"] = transferFailed.DocumentID
		var rejection *mangopay.TransferError
		if errors.As(err, &rejection) {
			data["Code"] = rejection.ResultCode
		}
	}
	if nerr := s.notifyAdmins(ctx, "Order settlement failed", "admin_order_failed", data); nerr != nil {
		s.logger.Error("admin notification failed", slog.Any("error", nerr))
	}
}

func (s *Service) notifyAdmins(ctx context.Context, subject, template string, data map[string]any) error {
	if len(s.cfg.AdminEmails) == 0 {
		return nil
	}
	return s.notifier.Notify(ctx, s.cfg.AdminEmails, subject, template, data)
}
