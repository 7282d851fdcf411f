package entities

import (
	"time"

	"arbor/internal/shared/money"
)

// MonthlyStatement closes one calendar month of the reward pool. RewardTotal
// is frozen at close from the pool balance; RewardAssigned and
// QuantityAssigned advance as assignments are written, so an interrupted
// close can resume from the last paid distributor.
type MonthlyStatement struct {
	StatementID      string
	Month            string // "2006-01"
	RewardTotal      money.Money
	RewardAssigned   money.Money
	QuantityAssigned int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Remaining is the unassigned share of the pool, floored at zero.
func (s MonthlyStatement) Remaining() money.Money {
	remaining, err := s.RewardTotal.Sub(s.RewardAssigned)
	if err != nil || remaining.IsNegative() {
		return money.Zero(s.RewardTotal.Currency)
	}
	return remaining
}
