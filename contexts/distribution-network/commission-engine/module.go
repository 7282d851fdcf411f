package commissionengine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"arbor/contexts/distribution-network/commission-engine/adapters/memory"
	"arbor/contexts/distribution-network/commission-engine/application"
	domainservices "arbor/contexts/distribution-network/commission-engine/domain/services"
	"arbor/contexts/distribution-network/commission-engine/ports"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger

	Mode                       ports.ComputeMode
	EnableSeniorDistributor    bool
	EnableSelfCommission       bool
	SelfOccupiesFirstLevel     bool
	EnableSelfCommissionOffset bool
	GroupLeaderPercentage      decimal.Decimal
	GroupQuantityLimit         int
	ChainLevelLimit            int
}

func NewModule(deps Dependencies) Module {
	mode := deps.Mode
	if mode == "" {
		mode = ports.ComputeModeDynamicPercentage
	}
	chainLimit := deps.ChainLevelLimit
	if chainLimit <= 0 {
		chainLimit = 10
	}
	return Module{
		Service: application.Service{
			Repo:   deps.Repository,
			Clock:  deps.Clock,
			IDGen:  deps.IDGen,
			Types:  domainservices.NewCommissionTypeRegistry(),
			Logger: deps.Logger,

			Mode:                       mode,
			EnableSeniorDistributor:    deps.EnableSeniorDistributor,
			EnableSelfCommission:       deps.EnableSelfCommission,
			SelfOccupiesFirstLevel:     deps.SelfOccupiesFirstLevel,
			EnableSelfCommissionOffset: deps.EnableSelfCommissionOffset,
			GroupLeaderPercentage:      deps.GroupLeaderPercentage,
			GroupQuantityLimit:         deps.GroupQuantityLimit,
			ChainLevelLimit:            chainLimit,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
