package ports

import (
	"context"
	"time"

	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	"arbor/internal/shared/events"
)

type RegisterDistributorInput struct {
	UserID     string
	UpstreamID string
}

type Repository interface {
	GetDistributor(ctx context.Context, distributorID string) (entities.Distributor, error)
	GetDistributorByUser(ctx context.Context, userID string) (entities.Distributor, error)
	ListDistributors(ctx context.Context) ([]entities.Distributor, error)
	CreateDistributor(ctx context.Context, distributor entities.Distributor) error
	UpdateDistributor(ctx context.Context, distributor entities.Distributor) error

	ListLeaders(ctx context.Context) ([]entities.Leader, error)
	CreateLeader(ctx context.Context, leader entities.Leader) error
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
