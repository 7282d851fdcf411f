package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"arbor/contexts/distribution-network/monthly-reward-service/domain/entities"
	"arbor/internal/shared/events"
	"arbor/internal/shared/money"
)

type ComputeMode string

const (
	ComputeModeFixedAmount       ComputeMode = "fixed_amount"
	ComputeModeDynamicPercentage ComputeMode = "dynamic_percentage"
)

// PoolItem carries one order item's reward configuration, projected from the
// catalog target by the caller. Items without a configured target contribute
// nothing to the pool.
type PoolItem struct {
	OrderItemID      string
	PurchasableID    string
	UnitPrice        money.Money
	Quantity         int
	HasTarget        bool
	PercentageReward decimal.Decimal
	AmountReward     money.Money
}

type PoolOrderInput struct {
	OrderID       string
	DistributorID string
	OrderTotal    money.Money
	PlacedAt      time.Time
	Items         []PoolItem
}

type Repository interface {
	CreateStatement(ctx context.Context, statement entities.MonthlyStatement) error
	UpdateStatement(ctx context.Context, statement entities.MonthlyStatement) error
	GetStatementByMonth(ctx context.Context, month string) (entities.MonthlyStatement, error)
	// The processed marker is the per-order double-count guard. It is set
	// only after a distribution pass lands completely, so a retried pass can
	// void and repost its entries safely.
	IsOrderProcessed(ctx context.Context, orderID string) (bool, error)
	MarkOrderProcessed(ctx context.Context, orderID string) error
	UnmarkOrderProcessed(ctx context.Context, orderID string) error
}

// RewardCommissionSink writes reward commissions against a statement. Backed
// by the commission engine in the composition root.
type RewardCommissionSink interface {
	AppendRewardCommission(ctx context.Context, distributorID string, amount money.Money, statementID string) error
	HasRewardCommission(ctx context.Context, statementID string, distributorID string) (bool, error)
}

// DistributorSource lists the candidates a monthly close walks over.
type DistributorSource interface {
	ListActiveDistributorIDs(ctx context.Context) ([]string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}
