package documents

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/money"
)

// Type enumerates document types.
type Type string

const (
	TypeProducerInvoice        Type = "producer_invoice"
	TypeLogisticsInvoice       Type = "logistics_invoice"
	TypePlatformInvoice        Type = "platform_invoice"
	TypeBuyerPlatformInvoice   Type = "buyer_platform_invoice"
	TypeCreditNote             Type = "credit_note"
	TypeOrderConfirmation      Type = "order_confirmation"
	TypeDeliveryOverviewBuyer  Type = "delivery_overview_buyer"
	TypeDeliveryOverviewSeller Type = "delivery_overview_seller"
	TypeReceiptBuyer           Type = "receipt_buyer"
)

// IsInvoice reports whether the document counts towards an order being
// fully paid. Order completion only looks at invoice-type documents.
func (t Type) IsInvoice() bool {
	return strings.Contains(string(t), "invoice")
}

// SettlementPriority orders documents within one settlement pass.
// Logistics and producer invoices are paid first; the platform invoice
// is always last because its amount depends on what the siblings paid.
func (t Type) SettlementPriority() int {
	switch t {
	case TypeLogisticsInvoice:
		return 0
	case TypeProducerInvoice:
		return 1
	case TypeCreditNote:
		return 2
	case TypePlatformInvoice, TypeBuyerPlatformInvoice:
		return 3
	default:
		return 4
	}
}

// PartySnapshot is an immutable copy of a party's identity, address and
// payment routing taken when the document was created. Settlement never
// re-reads live payee data.
type PartySnapshot struct {
	PayeeID        int64
	Name           string
	Email          string
	Street         string
	ZIP            string
	City           string
	Country        string
	ProviderUserID string
	WalletID       string
	BankAccountID  string
}

// Document model. Immutable once created, except for the payment fields
// set by the settlement engine.
type Document struct {
	ID               int64
	Type             Type
	OrderID          int64
	Seller           PartySnapshot
	Buyer            PartySnapshot
	Lines            []money.LineItem
	Paid             bool
	PaymentReference string
	ProviderPayinID  string
	ProviderTag      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Gross is the amount the waterfall transfers for this document:
// lines grouped by payee, rounded per payee per VAT rate, then summed.
func (d *Document) Gross() decimal.Decimal {
	return money.PriceGross(d.Lines)
}
