package mangopay

import "github.com/shopspring/decimal"

// EventType enumerates the webhook event types the provider delivers.
type EventType string

const (
	EventPayinSucceeded  EventType = "PAYIN_NORMAL_SUCCEEDED"
	EventPayinFailed     EventType = "PAYIN_NORMAL_FAILED"
	EventPayoutSucceeded EventType = "PAYOUT_NORMAL_SUCCEEDED"
	EventPayoutFailed    EventType = "PAYOUT_NORMAL_FAILED"
	EventKYCSucceeded    EventType = "KYC_SUCCEEDED"
	EventKYCFailed       EventType = "KYC_FAILED"
)

// Resource statuses.
const (
	StatusCreated   = "CREATED"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Funds is a provider money amount in minor units.
type Funds struct {
	Currency string `json:"Currency"`
	Amount   int64  `json:"Amount"`
}

// Decimal converts minor units to a decimal major-unit amount.
func (f Funds) Decimal() decimal.Decimal {
	return decimal.New(f.Amount, -2)
}

// ToCents converts a major-unit decimal amount to provider minor units,
// rounding half up.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PayIn is a provider pay-in resource.
type PayIn struct {
	ID               string `json:"Id"`
	Status           string `json:"Status"`
	AuthorID         string `json:"AuthorId"`
	CreditedUserID   string `json:"CreditedUserId"`
	CreditedWalletID string `json:"CreditedWalletId"`
	DebitedFunds     Funds  `json:"DebitedFunds"`
	CreditedFunds    Funds  `json:"CreditedFunds"`
	FeesFunds        Funds  `json:"Fees"`
	ResultCode       string `json:"ResultCode"`
	ResultMessage    string `json:"ResultMessage"`
	Tag              string `json:"Tag"`
}

// PayOut is a provider payout resource.
type PayOut struct {
	ID              string `json:"Id"`
	Status          string `json:"Status"`
	AuthorID        string `json:"AuthorId"`
	DebitedWalletID string `json:"DebitedWalletId"`
	BankAccountID   string `json:"BankAccountId"`
	DebitedFunds    Funds  `json:"DebitedFunds"`
	ResultCode      string `json:"ResultCode"`
	ResultMessage   string `json:"ResultMessage"`
	Tag             string `json:"Tag"`
}

// Wallet is a provider wallet resource.
type Wallet struct {
	ID       string   `json:"Id"`
	Owners   []string `json:"Owners"`
	Currency string   `json:"Currency"`
	Balance  Funds    `json:"Balance"`
}

// OwnerID returns the wallet's first owner, the only configuration the
// platform uses.
func (w Wallet) OwnerID() string {
	if len(w.Owners) == 0 {
		return ""
	}
	return w.Owners[0]
}

// Transfer is a provider wallet-to-wallet transfer result.
type Transfer struct {
	ID            string `json:"Id"`
	Status        string `json:"Status"`
	ResultCode    string `json:"ResultCode"`
	ResultMessage string `json:"ResultMessage"`
}

// BankingAlias is a provider virtual IBAN attached to a wallet.
type BankingAlias struct {
	ID        string `json:"Id"`
	IBAN      string `json:"IBAN"`
	BIC       string `json:"BIC"`
	OwnerName string `json:"OwnerName"`
	WalletID  string `json:"WalletId"`
}

// TransferInput parameterises a wallet-to-wallet transfer.
type TransferInput struct {
	AuthorID         string
	DebitedWalletID  string
	CreditedWalletID string
	Amount           decimal.Decimal
	Fees             decimal.Decimal
	Currency         string
	Tag              string
}

// PayOutInput parameterises a wallet-to-bank payout.
type PayOutInput struct {
	AuthorID        string
	DebitedWalletID string
	BankAccountID   string
	Amount          decimal.Decimal
	Fees            decimal.Decimal
	Currency        string
	Tag             string
}
