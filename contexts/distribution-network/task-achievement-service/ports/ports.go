package ports

import (
	"context"
	"time"

	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	"arbor/internal/shared/events"
	"arbor/internal/shared/money"
)

// OrderScoreInput is the view of one placed order handed to the achievement
// engine. UpstreamDistributorID is the order distributor's direct parent,
// resolved by the caller from the hierarchy index.
type OrderScoreInput struct {
	OrderID               string
	DistributorID         string
	UpstreamDistributorID string
	OrderTotal            money.Money
	PlacedAt              time.Time
}

type Repository interface {
	GetTask(ctx context.Context, taskID string) (entities.Task, error)
	ListActiveTasks(ctx context.Context) ([]entities.Task, error)

	CreateAcceptance(ctx context.Context, acceptance entities.Acceptance) error
	UpdateAcceptance(ctx context.Context, acceptance entities.Acceptance) error
	GetAcceptance(ctx context.Context, acceptanceID string) (entities.Acceptance, error)
	ListAcceptancesByOwners(ctx context.Context, ownerIDs []string) ([]entities.Acceptance, error)
	ListAcceptancesByDistributor(ctx context.Context, distributorID string) ([]entities.Acceptance, error)

	AppendAchievement(ctx context.Context, achievement entities.Achievement) error
	// HasAchievementForSource guards replayed orders: one source entity
	// contributes to one acceptance at most once.
	HasAchievementForSource(ctx context.Context, acceptanceID string, sourceType string, sourceID string) (bool, error)
	ListAchievements(ctx context.Context, acceptanceID string) ([]entities.Achievement, error)
}

// CommissionAppender posts the one-time task reward into the commission
// ledger; wired to the commission engine by the composition root.
type CommissionAppender interface {
	AppendTaskCommission(ctx context.Context, distributorID string, amount money.Money, acceptanceID string) error
}

// SeniorPromoter applies the upgrade side effect; wired to the hierarchy
// service by the composition root.
type SeniorPromoter interface {
	PromoteSenior(ctx context.Context, distributorID string) error
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
