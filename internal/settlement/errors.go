package settlement

import "fmt"

// DuplicateTransferError indicates a document is already paid or is
// being paid by a concurrent webhook delivery. Callers treat it as a
// no-op success; it is how the engine stays idempotent under
// at-least-once delivery.
type DuplicateTransferError struct {
	DocumentID int64
	Reason     string
}

func (e *DuplicateTransferError) Error() string {
	return fmt.Sprintf("settlement: document %d not transferred: %s", e.DocumentID, e.Reason)
}

// TransferFailedError identifies the document whose provider transfer
// was rejected. The provider's own result stays wrapped underneath.
type TransferFailedError struct {
	DocumentID int64
	Err        error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("settlement: document %d transfer rejected: %v", e.DocumentID, e.Err)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

// PaymentError indicates a business precondition failed before any
// money moved: missing payee wallet, currency mismatch. The order's
// waterfall aborts with no partial state.
type PaymentError struct {
	DocumentID int64
	Reason     string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("settlement: document %d cannot be paid: %s", e.DocumentID, e.Reason)
}
