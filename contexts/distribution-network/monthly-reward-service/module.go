package monthlyrewardservice

import (
	"log/slog"

	"arbor/contexts/distribution-network/monthly-reward-service/adapters/memory"
	"arbor/contexts/distribution-network/monthly-reward-service/application"
	"arbor/contexts/distribution-network/monthly-reward-service/domain/services"
	"arbor/contexts/distribution-network/monthly-reward-service/ports"
	"arbor/internal/shared/ledger"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
	Ledger  *ledger.Memory
}

type Dependencies struct {
	Repo         ports.Repository
	Ledger       ledger.Client
	Commissions  ports.RewardCommissionSink
	Distributors ports.DistributorSource
	Conditions   *services.ConditionRegistry
	Strategies   *services.StrategyRegistry
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Outbox       ports.OutboxWriter
	Logger       *slog.Logger

	Mode        ports.ComputeMode
	ConditionID string
	StrategyID  string
	Currency    string
}

func NewModule(deps Dependencies) Module {
	conditions := deps.Conditions
	if conditions == nil {
		conditions = services.DefaultConditionRegistry()
	}
	strategies := deps.Strategies
	if strategies == nil {
		strategies = services.DefaultStrategyRegistry()
	}
	mode := deps.Mode
	if mode == "" {
		mode = ports.ComputeModeDynamicPercentage
	}
	conditionID := deps.ConditionID
	if conditionID == "" {
		conditionID = services.ConditionOrderQuantity
	}
	strategyID := deps.StrategyID
	if strategyID == "" {
		strategyID = services.StrategyByAchievement
	}
	currency := deps.Currency
	if currency == "" {
		currency = "CNY"
	}
	return Module{
		Service: application.Service{
			Repo:         deps.Repo,
			Ledger:       deps.Ledger,
			Commissions:  deps.Commissions,
			Distributors: deps.Distributors,
			Conditions:   conditions,
			Strategies:   strategies,
			Clock:        deps.Clock,
			IDGen:        deps.IDGen,
			Outbox:       deps.Outbox,
			Logger:       deps.Logger,
			Mode:         mode,
			ConditionID:  conditionID,
			StrategyID:   strategyID,
			Currency:     currency,
		},
	}
}

// NewInMemoryModule wires the service against the in-memory store and an
// in-memory ledger, which is the setup the tests run on.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	led := ledger.NewMemory("CNY")
	module := NewModule(Dependencies{
		Repo:         store,
		Ledger:       led,
		Commissions:  store,
		Distributors: store,
		Clock:        store,
		IDGen:        store,
		Outbox:       store,
		Logger:       logger,
	})
	module.Store = store
	module.Ledger = led
	return module
}
