package ports

import (
	"time"

	"arbor/internal/shared/money"
)

// OrderItem is the orchestrator's view of one purchased line.
type OrderItem struct {
	OrderItemID   string
	PurchasableID string
	Quantity      int
	UnitPrice     money.Money
}

// Order is the slice of the external order subsystem the distribution pass
// consumes. PromoterID is the distributor whose referral produced the sale,
// when one is known.
type Order struct {
	OrderID    string
	CustomerID string
	PromoterID string
	Total      money.Money
	PlacedAt   time.Time
	Items      []OrderItem
}
