package distributionservice

import (
	"context"
	"log/slog"

	commissionengine "arbor/contexts/distribution-network/commission-engine"
	commissionapp "arbor/contexts/distribution-network/commission-engine/application"
	"arbor/contexts/distribution-network/distribution-service/application"
	hierarchyservice "arbor/contexts/distribution-network/hierarchy-service"
	hierarchyapp "arbor/contexts/distribution-network/hierarchy-service/application"
	hierarchyports "arbor/contexts/distribution-network/hierarchy-service/ports"
	monthlyrewardservice "arbor/contexts/distribution-network/monthly-reward-service"
	rewardmemory "arbor/contexts/distribution-network/monthly-reward-service/adapters/memory"
	rewardapp "arbor/contexts/distribution-network/monthly-reward-service/application"
	taskachievementservice "arbor/contexts/distribution-network/task-achievement-service"
	taskmemory "arbor/contexts/distribution-network/task-achievement-service/adapters/memory"
	taskapp "arbor/contexts/distribution-network/task-achievement-service/application"
	"arbor/internal/shared/ledger"
)

// Module is the composition of the whole distribution pipeline. The
// orchestrator holds the four underlying services; the in-memory variant also
// exposes their stores for tests and local runs.
type Module struct {
	Service application.Service

	Hierarchy  hierarchyservice.Module
	Commission commissionengine.Module
	Tasks      taskachievementservice.Module
	Rewards    monthlyrewardservice.Module
}

type Dependencies struct {
	Hierarchy  hierarchyapp.Service
	Commission commissionapp.Service
	Tasks      taskapp.Service
	Rewards    rewardapp.Service
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Hierarchy:  deps.Hierarchy,
			Commission: deps.Commission,
			Tasks:      deps.Tasks,
			Rewards:    deps.Rewards,
			Logger:     deps.Logger,
		},
	}
}

// SeniorPromoterAdapter narrows the hierarchy service to the task engine's
// promotion port.
type SeniorPromoterAdapter struct {
	Hierarchy hierarchyapp.Service
}

func (a SeniorPromoterAdapter) PromoteSenior(ctx context.Context, distributorID string) error {
	_, err := a.Hierarchy.PromoteSenior(ctx, distributorID)
	return err
}

// DistributorRoster lists active distributors for the monthly close.
type DistributorRoster struct {
	Repo hierarchyports.Repository
}

func (r DistributorRoster) ListActiveDistributorIDs(ctx context.Context) ([]string, error) {
	distributors, err := r.Repo.ListDistributors(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(distributors))
	for _, distributor := range distributors {
		if distributor.Active {
			ids = append(ids, distributor.DistributorID)
		}
	}
	return ids, nil
}

// NewInMemoryModule wires the full pipeline on in-memory adapters, with the
// commission engine acting as the commission sink for the task and reward
// services and the hierarchy feeding the close-run roster.
func NewInMemoryModule(logger *slog.Logger) Module {
	hierarchyModule := hierarchyservice.NewInMemoryModule(logger)
	commissionModule := commissionengine.NewInMemoryModule(logger)

	taskStore := taskmemory.NewStore()
	taskModule := taskachievementservice.NewModule(taskachievementservice.Dependencies{
		Repo:        taskStore,
		Commissions: commissionModule.Service,
		Seniors:     SeniorPromoterAdapter{Hierarchy: hierarchyModule.Service},
		Clock:       taskStore,
		IDGen:       taskStore,
		Outbox:      taskStore,
		Logger:      logger,
	})
	taskModule.Store = taskStore

	rewardStore := rewardmemory.NewStore()
	rewardLedger := ledger.NewMemory("CNY")
	rewardModule := monthlyrewardservice.NewModule(monthlyrewardservice.Dependencies{
		Repo:         rewardStore,
		Ledger:       rewardLedger,
		Commissions:  commissionModule.Service,
		Distributors: DistributorRoster{Repo: hierarchyModule.Service.Repo},
		Clock:        rewardStore,
		IDGen:        rewardStore,
		Outbox:       rewardStore,
		Logger:       logger,
	})
	rewardModule.Store = rewardStore
	rewardModule.Ledger = rewardLedger

	module := NewModule(Dependencies{
		Hierarchy:  hierarchyModule.Service,
		Commission: commissionModule.Service,
		Tasks:      taskModule.Service,
		Rewards:    rewardModule.Service,
		Logger:     logger,
	})
	module.Hierarchy = hierarchyModule
	module.Commission = commissionModule
	module.Tasks = taskModule
	module.Rewards = rewardModule
	return module
}
