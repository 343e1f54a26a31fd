package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order statuses.
type Status string

const (
	StatusCart    Status = "cart"
	StatusOrdered Status = "ordered"
	StatusPaid    Status = "paid"
)

// Order model.
type Order struct {
	ID         int64
	BuyerID    int64
	Status     Status
	RegionID   int64
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
