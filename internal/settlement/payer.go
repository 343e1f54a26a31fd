package settlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
)

// Payer settles a single document: resolve the destination wallet, move
// the money, flag the document paid, all under the document's row lock.
type Payer struct {
	docs     DocumentRepo
	provider Provider
	currency string
	logger   *slog.Logger
}

// NewPayer constructs a payer.
func NewPayer(docs DocumentRepo, provider Provider, currency string, logger *slog.Logger) *Payer {
	return &Payer{docs: docs, provider: provider, currency: currency, logger: logger}
}

// Pay transfers amount from the source to the destination wallet and
// marks the document paid, as one atomic unit. The document lock is
// acquired non-blocking; a concurrent payment attempt or an already
// paid document yields *DuplicateTransferError. A transfer the source
// and destination wallet share skips the provider call (the money is
// already where it belongs) but the document is still flagged.
//
// Provider rejections come back as *TransferFailedError naming the
// document: the transaction rolls back, the document stays unpaid and
// the next webhook redelivery retries.
func (p *Payer) Pay(ctx context.Context, doc *documents.Document, authorID, sourceWallet, destWallet string, amount, fee decimal.Decimal, reference string) error {
	if destWallet == "" {
		return &PaymentError{DocumentID: doc.ID, Reason: "payee has no wallet"}
	}

	err := p.docs.PayLocked(ctx, doc.ID, reference, func(locked *documents.Document) error {
		if sourceWallet == destWallet {
			p.logger.Debug("same-wallet transfer skipped",
				slog.Int64("document_id", locked.ID),
				slog.String("wallet", sourceWallet))
			return nil
		}
		_, err := p.provider.Transfer(ctx, mangopay.TransferInput{
			AuthorID:         authorID,
			DebitedWalletID:  sourceWallet,
			CreditedWalletID: destWallet,
			Amount:           amount,
			Fees:             fee,
			Currency:         p.currency,
			Tag:              locked.ProviderTag,
		})
		return err
	})
	switch {
	case errors.Is(err, documents.ErrLocked):
		return &DuplicateTransferError{DocumentID: doc.ID, Reason: "being paid by another process"}
	case errors.Is(err, documents.ErrAlreadyPaid):
		return &DuplicateTransferError{DocumentID: doc.ID, Reason: "already paid"}
	case err != nil:
		var rejection *mangopay.TransferError
		if errors.As(err, &rejection) {
			return &TransferFailedError{DocumentID: doc.ID, Err: err}
		}
		return err
	}

	p.logger.Info("document paid",
		slog.Int64("document_id", doc.ID),
		slog.String("type", string(doc.Type)),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("payment_reference", reference))
	return nil
}
