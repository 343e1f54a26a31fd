package orders

import (
	"context"
	"log/slog"

	"github.com/regiomarkt/regiomarkt/internal/documents"
)

// DocumentSource is the slice of the document repository the tracker needs.
type DocumentSource interface {
	ForOrder(ctx context.Context, orderID int64) ([]*documents.Document, error)
	MarkPaid(ctx context.Context, id int64, reference string) error
}

// OrderStore persists order status transitions.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*Order, error)
	MarkPaid(ctx context.Context, id int64) (bool, error)
}

// CompletionTracker flips an order to paid once every invoice it owns
// is paid. It runs after every settlement pass and is re-entrant.
type CompletionTracker struct {
	orders OrderStore
	docs   DocumentSource
	logger *slog.Logger
}

// NewCompletionTracker constructs the tracker.
func NewCompletionTracker(orders OrderStore, docs DocumentSource, logger *slog.Logger) *CompletionTracker {
	return &CompletionTracker{orders: orders, docs: docs, logger: logger}
}

// TryComplete marks the order paid when no owned invoice-type document
// remains unpaid, and settles the order confirmation alongside it.
// Returns true when the order is (now or already) paid.
func (t *CompletionTracker) TryComplete(ctx context.Context, orderID int64, reference string) (bool, error) {
	order, err := t.orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status == StatusPaid {
		return true, nil
	}

	docs, err := t.docs.ForOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	var confirmations []*documents.Document
	for _, doc := range docs {
		if doc.Type.IsInvoice() && !doc.Paid {
			return false, nil
		}
		if doc.Type == documents.TypeOrderConfirmation && !doc.Paid {
			confirmations = append(confirmations, doc)
		}
	}

	transitioned, err := t.orders.MarkPaid(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, doc := range confirmations {
		if err := t.docs.MarkPaid(ctx, doc.ID, reference); err != nil {
			return false, err
		}
	}
	if transitioned {
		t.logger.Info("order fully paid",
			slog.Int64("order_id", orderID),
			slog.String("payment_reference", reference))
	}
	return true, nil
}
