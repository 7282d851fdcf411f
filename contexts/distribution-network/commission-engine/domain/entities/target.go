package entities

import (
	"github.com/shopspring/decimal"

	"arbor/internal/shared/money"
)

// Target is the commission configuration attached to one purchasable catalog
// item. Percentage fields apply in dynamic_percentage mode, fixed amounts in
// fixed_amount mode; the two sets are mutually exclusive per the global
// compute mode. Senior percentages are an optional override table used when
// the senior-distributor feature is on.
type Target struct {
	TargetID      string
	PurchasableID string
	Currency      string
	Active        bool

	AmountOff money.Money

	PercentagePromotion decimal.Decimal
	PercentageChain     decimal.Decimal
	PercentageLeader    decimal.Decimal
	PercentageReward    decimal.Decimal

	PercentagePromotionSenior *decimal.Decimal
	PercentageChainSenior     *decimal.Decimal
	PercentageLeaderSenior    *decimal.Decimal

	AmountPromotion money.Money
	AmountChain     money.Money
	AmountLeader    money.Money
	AmountReward    money.Money
}

// Level is one row of the per-target chain decay table. Chain payouts stop at
// the first undefined or inactive level; levels are never skipped.
type Level struct {
	TargetID    string
	LevelNumber int
	Percentage  decimal.Decimal
	Active      bool
}
