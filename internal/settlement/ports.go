package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
)

// DocumentRepo is the slice of the document repository the engine needs.
type DocumentRepo interface {
	UnpaidForOrder(ctx context.Context, orderID int64) ([]*documents.Document, error)
	UnpaidByTypes(ctx context.Context, orderID int64, types ...documents.Type) ([]*documents.Document, error)
	CreditNotesForOrder(ctx context.Context, orderID int64) ([]*documents.Document, error)
	UnpaidOrderConfirmations(ctx context.Context, buyerProviderUserID string) ([]*documents.Document, error)
	PayLocked(ctx context.Context, id int64, reference string, fn func(doc *documents.Document) error) error
	PayAllLocked(ctx context.Context, ids []int64, reference string, fn func(docs []*documents.Document) error) error
	SetProviderPayin(ctx context.Context, id int64, payinID string) error
}

// Provider is the narrow payment-provider API the engine consumes.
type Provider interface {
	PayIn(ctx context.Context, id string) (*mangopay.PayIn, error)
	PayOut(ctx context.Context, id string) (*mangopay.PayOut, error)
	Wallet(ctx context.Context, id string) (*mangopay.Wallet, error)
	Transfer(ctx context.Context, input mangopay.TransferInput) (*mangopay.Transfer, error)
}

// Completer flips orders to paid once all their invoices are settled.
type Completer interface {
	TryComplete(ctx context.Context, orderID int64, reference string) (bool, error)
}

// PayoutRequest asks for funds to be moved from a wallet to its
// owner's bank account, asynchronously.
type PayoutRequest struct {
	AuthorID      string
	WalletID      string
	BankAccountID string
	Amount        decimal.Decimal
	Currency      string
	Reference     string
}

// PayoutScheduler enqueues payout requests for the background worker.
type PayoutScheduler interface {
	SchedulePayout(ctx context.Context, req PayoutRequest) error
}

// Notifier delivers templated mails to admins and payees.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, template string, data map[string]any) error
}

// EventStore remembers webhook event ids that settled cleanly. Best
// effort: the document locks stay authoritative for correctness, so an
// event is only marked after its run succeeds and a crashed run leaves
// it open for the provider's redelivery.
type EventStore interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// PayeeDirectory resolves contact data for a provider user.
type PayeeDirectory interface {
	EmailForProviderUser(ctx context.Context, providerUserID string) (string, error)
}
