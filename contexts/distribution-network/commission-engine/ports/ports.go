package ports

import (
	"context"
	"time"

	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	"arbor/internal/shared/money"
)

type ComputeMode string

const (
	ComputeModeFixedAmount       ComputeMode = "fixed_amount"
	ComputeModeDynamicPercentage ComputeMode = "dynamic_percentage"
)

// ChainNode is the commission engine's view of one distributor on a chain
// walk. The orchestrator adapts hierarchy entities into this shape so the
// engine never depends on the hierarchy service directly.
type ChainNode struct {
	DistributorID string
	IsSenior      bool
	IsLeader      bool
	Active        bool
}

type CommissionFilter struct {
	DistributorID string
	Type          entities.CommissionType
	From          time.Time
	To            time.Time
	ValidOnly     bool
}

type Repository interface {
	GetTargetByPurchasable(ctx context.Context, purchasableID string) (entities.Target, error)
	GetLevel(ctx context.Context, targetID string, levelNumber int) (entities.Level, bool, error)

	// SavePass persists an order's events and commissions atomically:
	// either every row lands or none do.
	SavePass(ctx context.Context, events []entities.Event, commissions []entities.Commission) error
	AppendCommission(ctx context.Context, commission entities.Commission) error

	ListEventsByOrder(ctx context.Context, orderID string) ([]entities.Event, error)
	ListCommissions(ctx context.Context, filter CommissionFilter) ([]entities.Commission, error)
	// CountValidGroupCuts counts the valid group-leader cuts already received
	// by the distributor, used to enforce the group slot limit.
	CountValidGroupCuts(ctx context.Context, distributorID string) (int, error)

	// VoidByOrder flips Valid on the order's events and their commissions.
	VoidByOrder(ctx context.Context, orderID string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// PriceAdjustment is the calculator's per-item price change. Skipped is true
// when the adjustment could not be applied (currency mismatch) and the item
// should continue through distribution untouched.
type PriceAdjustment struct {
	Amount  money.Money
	Skipped bool
}
