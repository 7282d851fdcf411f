package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
	domainservices "arbor/contexts/distribution-network/hierarchy-service/domain/services"
	"arbor/contexts/distribution-network/hierarchy-service/ports"
	"arbor/internal/shared/events"
)

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Outbox ports.OutboxWriter
	Logger *slog.Logger
}

// BuildIndex loads the full distributor set and builds the navigational index.
// Callers performing a batch pass (validation, chain walks, monthly close)
// should build once and reuse it for every walk in the pass.
func (s Service) BuildIndex(ctx context.Context) (*domainservices.Index, error) {
	distributors, err := s.Repo.ListDistributors(ctx)
	if err != nil {
		return nil, err
	}
	return domainservices.BuildIndex(distributors), nil
}

// ActiveLeaderSet returns the distributor ids holding approved, active leader
// roles. Pending or inactive leader records do not count.
func (s Service) ActiveLeaderSet(ctx context.Context) (map[string]bool, error) {
	leaders, err := s.Repo.ListLeaders(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(leaders))
	for _, leader := range leaders {
		if leader.CountsAsLeader() {
			set[leader.DistributorID] = true
		}
	}
	return set, nil
}

// ValidatePromotion checks the leader placement constraints without applying
// anything. A non-nil Violation is a user-facing validation outcome.
func (s Service) ValidatePromotion(ctx context.Context, distributorID string) (*domainservices.Violation, error) {
	if strings.TrimSpace(distributorID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	index, err := s.BuildIndex(ctx)
	if err != nil {
		return nil, err
	}
	activeLeaders, err := s.ActiveLeaderSet(ctx)
	if err != nil {
		return nil, err
	}
	return domainservices.EvaluateLeaderPromotion(index, activeLeaders, strings.TrimSpace(distributorID))
}

// PromoteLeader validates placement and, when clean, persists the approved
// leader role and flips the distributor's derived IsLeader flag.
func (s Service) PromoteLeader(ctx context.Context, distributorID string) (entities.Leader, *domainservices.Violation, error) {
	distributorID = strings.TrimSpace(distributorID)
	if distributorID == "" {
		return entities.Leader{}, nil, domainerrors.ErrInvalidInput
	}

	distributor, err := s.Repo.GetDistributor(ctx, distributorID)
	if err != nil {
		return entities.Leader{}, nil, err
	}
	if distributor.IsLeader {
		return entities.Leader{}, nil, domainerrors.ErrAlreadyLeader
	}

	violation, err := s.ValidatePromotion(ctx, distributorID)
	if err != nil {
		return entities.Leader{}, nil, err
	}
	if violation != nil {
		resolveLogger(s.Logger).Info("leader promotion rejected",
			"event", "leader_promotion_rejected",
			"module", "distribution-network/hierarchy-service",
			"layer", "application",
			"distributor_id", distributorID,
			"violation", violation.Code,
		)
		return entities.Leader{}, violation, nil
	}

	leaderID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Leader{}, nil, err
	}
	leader := entities.Leader{
		LeaderID:      leaderID,
		DistributorID: distributorID,
		Status:        entities.LeaderStatusApproved,
		Active:        true,
		CreatedAt:     s.now(),
	}
	if err := s.Repo.CreateLeader(ctx, leader); err != nil {
		return entities.Leader{}, nil, err
	}

	distributor.IsLeader = true
	distributor.UpdatedAt = s.now()
	if err := s.Repo.UpdateDistributor(ctx, distributor); err != nil {
		return entities.Leader{}, nil, err
	}

	if err := s.appendPromotionNotice(ctx, events.TypeDistributorPromotedLeader, distributor); err != nil {
		return entities.Leader{}, nil, err
	}
	resolveLogger(s.Logger).Info("distributor promoted to leader",
		"event", "distributor_promoted_leader",
		"module", "distribution-network/hierarchy-service",
		"layer", "application",
		"distributor_id", distributorID,
	)
	return leader, nil, nil
}

// PromoteSenior flips the senior flag once; promoting an already senior
// distributor is a no-op.
func (s Service) PromoteSenior(ctx context.Context, distributorID string) (entities.Distributor, error) {
	distributor, err := s.Repo.GetDistributor(ctx, strings.TrimSpace(distributorID))
	if err != nil {
		return entities.Distributor{}, err
	}
	if distributor.IsSenior {
		return distributor, nil
	}

	distributor.IsSenior = true
	distributor.UpdatedAt = s.now()
	if err := s.Repo.UpdateDistributor(ctx, distributor); err != nil {
		return entities.Distributor{}, err
	}
	if err := s.appendPromotionNotice(ctx, events.TypeDistributorPromotedSenior, distributor); err != nil {
		return entities.Distributor{}, err
	}
	resolveLogger(s.Logger).Info("distributor promoted to senior",
		"event", "distributor_promoted_senior",
		"module", "distribution-network/hierarchy-service",
		"layer", "application",
		"distributor_id", distributor.DistributorID,
	)
	return distributor, nil
}

// RegisterDistributor creates a node under the given upstream. Roots get
// LevelNumber 1; children sit one level below their parent.
func (s Service) RegisterDistributor(ctx context.Context, input ports.RegisterDistributorInput) (entities.Distributor, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return entities.Distributor{}, domainerrors.ErrInvalidInput
	}
	if _, err := s.Repo.GetDistributorByUser(ctx, userID); err == nil {
		return entities.Distributor{}, domainerrors.ErrDistributorExists
	} else if !errors.Is(err, domainerrors.ErrDistributorNotFound) {
		return entities.Distributor{}, err
	}

	level := 1
	var upstream *string
	if up := strings.TrimSpace(input.UpstreamID); up != "" {
		parent, err := s.Repo.GetDistributor(ctx, up)
		if err != nil {
			return entities.Distributor{}, err
		}
		level = parent.LevelNumber + 1
		upstreamID := parent.DistributorID
		upstream = &upstreamID
	}

	distributorID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Distributor{}, err
	}
	distributor := entities.Distributor{
		DistributorID: distributorID,
		UserID:        userID,
		UpstreamID:    upstream,
		LevelNumber:   level,
		Active:        true,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if err := s.Repo.CreateDistributor(ctx, distributor); err != nil {
		return entities.Distributor{}, err
	}
	return distributor, nil
}

// Reparent moves a distributor under a new upstream and recomputes the
// LevelNumber invariant for the whole moved subtree.
func (s Service) Reparent(ctx context.Context, distributorID string, newUpstreamID string) error {
	distributorID = strings.TrimSpace(distributorID)
	newUpstreamID = strings.TrimSpace(newUpstreamID)
	if distributorID == "" || distributorID == newUpstreamID {
		return domainerrors.ErrInvalidInput
	}

	index, err := s.BuildIndex(ctx)
	if err != nil {
		return err
	}
	distributor, ok := index.Get(distributorID)
	if !ok {
		return domainerrors.ErrDistributorNotFound
	}

	newLevel := 1
	var upstream *string
	if newUpstreamID != "" {
		parent, ok := index.Get(newUpstreamID)
		if !ok {
			return domainerrors.ErrDistributorNotFound
		}
		for _, node := range index.Downstream(distributorID, 0) {
			if node.DistributorID == parent.DistributorID {
				// Moving under one's own subtree would loop the chain.
				return domainerrors.ErrHierarchyCycle
			}
		}
		newLevel = parent.LevelNumber + 1
		upstreamID := parent.DistributorID
		upstream = &upstreamID
	}

	shift := newLevel - distributor.LevelNumber
	distributor.UpstreamID = upstream
	distributor.LevelNumber = newLevel
	distributor.UpdatedAt = s.now()
	if err := s.Repo.UpdateDistributor(ctx, distributor); err != nil {
		return err
	}

	for _, node := range index.Downstream(distributorID, 0) {
		node.LevelNumber += shift
		node.UpdatedAt = s.now()
		if err := s.Repo.UpdateDistributor(ctx, node); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate soft-disables a distributor. The node stays in the tree so
// downstream level numbering and historical commissions remain intact.
func (s Service) Deactivate(ctx context.Context, distributorID string) error {
	distributor, err := s.Repo.GetDistributor(ctx, strings.TrimSpace(distributorID))
	if err != nil {
		return err
	}
	if !distributor.Active {
		return nil
	}
	distributor.Active = false
	distributor.UpdatedAt = s.now()
	return s.Repo.UpdateDistributor(ctx, distributor)
}

func (s Service) appendPromotionNotice(ctx context.Context, eventType string, distributor entities.Distributor) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "distribution-network/hierarchy-service",
		OccurredAtUTC:  s.now(),
		EntityType:     "distributor",
		EntityID:       distributor.DistributorID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"distributor_id": distributor.DistributorID,
			"user_id":        distributor.UserID,
			"is_senior":      distributor.IsSenior,
			"is_leader":      distributor.IsLeader,
		},
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
