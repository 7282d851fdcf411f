package entities

import (
	"time"

	"arbor/internal/shared/money"
)

// Event is the frozen record of one order item's distributable amounts,
// captured at sale time. It is immutable after creation; cancellation only
// flips Valid, which soft-voids the commissions hanging off it.
type Event struct {
	EventID       string
	OrderID       string
	OrderItemID   string
	DistributorID string
	TargetID      string

	Amount          money.Money
	AmountPromotion money.Money
	AmountChain     money.Money
	AmountLeader    money.Money

	Valid     bool
	CreatedAt time.Time
}
