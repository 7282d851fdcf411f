package entities

import (
	"time"

	"arbor/internal/shared/money"
)

type CommissionType string

const (
	CommissionTypePromotion CommissionType = "promotion"
	CommissionTypeChain     CommissionType = "chain"
	CommissionTypeLeader    CommissionType = "leader"
	CommissionTypeTask      CommissionType = "task"
	CommissionTypeReward    CommissionType = "reward"
)

// Commission is one append-only payout row to one distributor. Cancellation
// flips Valid instead of mutating or deleting; balance queries filter on
// Valid=true.
type Commission struct {
	CommissionID  string
	Type          CommissionType
	DistributorID string
	Amount        money.Money
	Valid         bool

	// Source references: EventID for sale-driven types, AcceptanceID for
	// task rewards, StatementID for monthly reward payouts.
	EventID      string
	AcceptanceID string
	StatementID  string

	// LevelNumber is set on chain hops; GroupLeaderFor marks a secondary
	// group-leader cut and references the primary leader's distributor id.
	LevelNumber    int
	GroupLeaderFor string

	CreatedAt time.Time
}
