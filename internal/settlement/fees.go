package settlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
)

// Provider base commission: 0.5% of the moved amount plus 19% VAT on
// that commission.
var (
	baseCommissionRate = decimal.RequireFromString("0.005")
	commissionVAT      = decimal.RequireFromString("1.19")
)

// processingFeeTiers maps order gross brackets to the share of the base
// commission charged. The rate decreases monotonically with order value.
var processingFeeTiers = []struct {
	upTo decimal.Decimal
	rate decimal.Decimal
}{
	{decimal.NewFromInt(100), decimal.RequireFromString("0.15")},
	{decimal.NewFromInt(200), decimal.RequireFromString("0.12")},
	{decimal.NewFromInt(350), decimal.RequireFromString("0.10")},
	{decimal.NewFromInt(500), decimal.RequireFromString("0.08")},
	{decimal.NewFromInt(1000), decimal.RequireFromString("0.07")},
}

var processingFeeFloor = decimal.RequireFromString("0.06")

// ProcessingFee computes the provider processing fee for an order's
// total gross value, rounded half up to two decimal places.
func ProcessingFee(orderGross decimal.Decimal) decimal.Decimal {
	rate := processingFeeFloor
	for _, tier := range processingFeeTiers {
		if orderGross.LessThanOrEqual(tier.upTo) {
			rate = tier.rate
			break
		}
	}
	return orderGross.Mul(rate).Mul(baseCommissionRate).Mul(commissionVAT).Round(2)
}

// PlatformConfig identifies the global platform owner and how provider
// fees are charged. Injected at construction, never looked up.
type PlatformConfig struct {
	GlobalOwnerUserID        string
	GlobalOwnerWalletID      string
	GlobalOwnerBankAccountID string
	GlobalOwnerEmail         string
	Currency                 string
	// FeesChargedAtPayin is set when the provider already deducted its
	// fee at the pay-in step. The fee is then subtracted from the
	// transferred amount instead of being attached to the transfer;
	// the same convention applies everywhere.
	FeesChargedAtPayin bool
}

// FeeSplitter settles an order's combined platform fee: the local
// owner's share goes out via the credit note, the remainder minus the
// provider processing fee to the global owner, and the platform
// invoices are flagged paid as one unit.
type FeeSplitter struct {
	docs     DocumentRepo
	provider Provider
	payer    *Payer
	payouts  PayoutScheduler
	notifier Notifier
	cfg      PlatformConfig
	logger   *slog.Logger
}

// NewFeeSplitter constructs a fee splitter.
func NewFeeSplitter(docs DocumentRepo, provider Provider, payer *Payer, payouts PayoutScheduler, notifier Notifier, cfg PlatformConfig, logger *slog.Logger) *FeeSplitter {
	return &FeeSplitter{
		docs:     docs,
		provider: provider,
		payer:    payer,
		payouts:  payouts,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Settle runs the fee split for one order. A no-op when the order has
// no unpaid platform invoices. On transfer failure nothing is marked
// paid and the operation is safe to retry on redelivery.
func (f *FeeSplitter) Settle(ctx context.Context, orderID int64, orderGross decimal.Decimal, authorID, buyerWallet, reference string) error {
	platformDocs, err := f.docs.UnpaidByTypes(ctx, orderID,
		documents.TypePlatformInvoice, documents.TypeBuyerPlatformInvoice)
	if err != nil {
		return err
	}
	if len(platformDocs) == 0 {
		return nil
	}

	localFee, err := f.settleCreditNotes(ctx, orderID, authorID, buyerWallet, reference)
	if err != nil {
		return err
	}

	totalFee := decimal.Zero
	for _, doc := range platformDocs {
		totalFee = totalFee.Add(doc.Gross())
	}

	processing := ProcessingFee(orderGross)
	amount := totalFee.Sub(localFee)
	transferFee := processing
	if f.cfg.FeesChargedAtPayin {
		amount = amount.Sub(processing)
		transferFee = decimal.Zero
	}
	amount = amount.Round(2)
	if amount.IsNegative() {
		return &PaymentError{
			DocumentID: platformDocs[0].ID,
			Reason:     "platform fee lower than local share and processing fee",
		}
	}

	ids := make([]int64, 0, len(platformDocs))
	for _, doc := range platformDocs {
		ids = append(ids, doc.ID)
	}

	err = f.docs.PayAllLocked(ctx, ids, reference, func(locked []*documents.Document) error {
		if amount.IsZero() && transferFee.IsZero() {
			return nil
		}
		_, err := f.provider.Transfer(ctx, mangopay.TransferInput{
			AuthorID:         authorID,
			DebitedWalletID:  buyerWallet,
			CreditedWalletID: f.cfg.GlobalOwnerWalletID,
			Amount:           amount,
			Fees:             transferFee,
			Currency:         f.cfg.Currency,
			Tag:              locked[0].ProviderTag,
		})
		return err
	})
	switch {
	case errors.Is(err, documents.ErrLocked):
		return &DuplicateTransferError{DocumentID: ids[0], Reason: "being paid by another process"}
	case errors.Is(err, documents.ErrAlreadyPaid):
		return &DuplicateTransferError{DocumentID: ids[0], Reason: "already paid"}
	case err != nil:
		var rejection *mangopay.TransferError
		if errors.As(err, &rejection) {
			return &TransferFailedError{DocumentID: ids[0], Err: err}
		}
		return err
	}

	// Whichever way the fee was charged, the wallet ends up credited
	// with the net amount; that is what the payout moves to the bank.
	net := totalFee.Sub(localFee).Sub(processing).Round(2)

	f.logger.Info("platform fee settled",
		slog.Int64("order_id", orderID),
		slog.String("total_fee", totalFee.StringFixed(2)),
		slog.String("local_fee", localFee.StringFixed(2)),
		slog.String("processing_fee", processing.StringFixed(2)))

	if f.cfg.GlobalOwnerEmail != "" {
		if err := f.notifier.Notify(ctx, []string{f.cfg.GlobalOwnerEmail},
			"Platform fee received", "payee_credit", map[string]any{
				"OrderID":   orderID,
				"Amount":    net,
				"Reference": reference,
			}); err != nil {
			f.logger.Warn("payee notification failed", slog.Any("error", err))
		}
	}

	if net.IsPositive() {
		if err := f.payouts.SchedulePayout(ctx, PayoutRequest{
			AuthorID:      f.cfg.GlobalOwnerUserID,
			WalletID:      f.cfg.GlobalOwnerWalletID,
			BankAccountID: f.cfg.GlobalOwnerBankAccountID,
			Amount:        net,
			Currency:      f.cfg.Currency,
			Reference:     reference,
		}); err != nil {
			return err
		}
	}
	return nil
}

// settleCreditNotes pays the local owner's share and returns the total
// local fee due. The fee is computed over every credit note the global
// owner issued for the order, paid or not, so a retry after a partial
// failure never routes the local share to the global owner again.
func (f *FeeSplitter) settleCreditNotes(ctx context.Context, orderID int64, authorID, buyerWallet, reference string) (decimal.Decimal, error) {
	notes, err := f.docs.CreditNotesForOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	localFee := decimal.Zero
	for _, note := range notes {
		if note.Seller.ProviderUserID != f.cfg.GlobalOwnerUserID {
			continue
		}
		localFee = localFee.Add(note.Gross())
		if note.Paid {
			continue
		}
		err := f.payer.Pay(ctx, note, authorID, buyerWallet, note.Buyer.WalletID,
			note.Gross(), decimal.Zero, reference)
		var dup *DuplicateTransferError
		if errors.As(err, &dup) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
	}
	return localFee, nil
}
