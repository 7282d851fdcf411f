package taskachievementservice

import (
	"log/slog"

	"arbor/contexts/distribution-network/task-achievement-service/adapters/memory"
	"arbor/contexts/distribution-network/task-achievement-service/application"
	"arbor/contexts/distribution-network/task-achievement-service/domain/services"
	"arbor/contexts/distribution-network/task-achievement-service/ports"
)

// Module bundles the task achievement application service with its adapters.
type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repo        ports.Repository
	Commissions ports.CommissionAppender
	Seniors     ports.SeniorPromoter
	Types       *services.TaskTypeRegistry
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Outbox      ports.OutboxWriter
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	types := deps.Types
	if types == nil {
		types = services.DefaultTaskTypeRegistry()
	}
	return Module{
		Service: application.Service{
			Repo:        deps.Repo,
			Commissions: deps.Commissions,
			Seniors:     deps.Seniors,
			Types:       types,
			Clock:       deps.Clock,
			IDGen:       deps.IDGen,
			Outbox:      deps.Outbox,
			Logger:      deps.Logger,
		},
	}
}

// NewInMemoryModule wires the service against the in-memory store, which
// doubles as commission sink and senior promoter for tests.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repo:        store,
		Commissions: store,
		Seniors:     store,
		Clock:       store,
		IDGen:       store,
		Outbox:      store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
