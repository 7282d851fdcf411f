package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	commissionengine "arbor/contexts/distribution-network/commission-engine"
	commissionpg "arbor/contexts/distribution-network/commission-engine/adapters/postgres"
	commissionports "arbor/contexts/distribution-network/commission-engine/ports"
	distributionservice "arbor/contexts/distribution-network/distribution-service"
	hierarchyservice "arbor/contexts/distribution-network/hierarchy-service"
	hierarchypg "arbor/contexts/distribution-network/hierarchy-service/adapters/postgres"
	monthlyrewardservice "arbor/contexts/distribution-network/monthly-reward-service"
	rewardpg "arbor/contexts/distribution-network/monthly-reward-service/adapters/postgres"
	rewardworkers "arbor/contexts/distribution-network/monthly-reward-service/application/workers"
	rewardservices "arbor/contexts/distribution-network/monthly-reward-service/domain/services"
	rewardports "arbor/contexts/distribution-network/monthly-reward-service/ports"
	taskachievementservice "arbor/contexts/distribution-network/task-achievement-service"
	taskpg "arbor/contexts/distribution-network/task-achievement-service/adapters/postgres"
	"arbor/internal/platform/config"
	"arbor/internal/platform/db"
	"arbor/internal/platform/messaging"
	"arbor/internal/shared/ledger"
	"arbor/internal/shared/outbox"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const eventsTopic = "distribution.events"

type WorkerApp struct {
	postgres     *db.Postgres
	distribution distributionservice.Module
	monthlyClose rewardworkers.MonthlyCloseJob
	relay        outbox.Relay
	cron         *cron.Cron
	cronSpec     string
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	hierarchyRepo := hierarchypg.NewRepository(pg.DB, logger)
	commissionRepo := commissionpg.NewRepository(pg.DB, logger)
	taskRepo := taskpg.NewRepository(pg.DB, logger)
	rewardRepo := rewardpg.NewRepository(pg.DB, logger)
	rewardLedger := ledger.NewPostgres(pg.DB, cfg.Currency, logger)
	outboxStore := outbox.NewStore(pg.DB)

	if err := migrate(hierarchyRepo, commissionRepo, taskRepo, rewardRepo, rewardLedger, outboxStore); err != nil {
		return nil, err
	}

	hierarchyModule := hierarchyservice.NewModule(hierarchyservice.Dependencies{
		Repository: hierarchyRepo,
		Clock:      hierarchypg.SystemClock{},
		IDGen:      hierarchypg.UUIDGenerator{},
		Outbox:     outboxStore,
		Logger:     logger,
	})

	commissionModule := commissionengine.NewModule(commissionengine.Dependencies{
		Repository: commissionRepo,
		Clock:      commissionpg.SystemClock{},
		IDGen:      commissionpg.UUIDGenerator{},
		Logger:     logger,

		Mode:                       commissionports.ComputeMode(cfg.ComputeMode),
		EnableSeniorDistributor:    cfg.EnableSeniorDistributor,
		EnableSelfCommission:       cfg.EnableSelfCommission,
		SelfOccupiesFirstLevel:     cfg.SelfOccupiesFirstLevel,
		EnableSelfCommissionOffset: cfg.EnableSelfCommissionOffset,
		GroupLeaderPercentage:      cfg.GroupLeaderPercentage,
		GroupQuantityLimit:         cfg.GroupQuantityLimit,
		ChainLevelLimit:            cfg.ChainLevelLimit,
	})

	taskModule := taskachievementservice.NewModule(taskachievementservice.Dependencies{
		Repo:        taskRepo,
		Commissions: commissionModule.Service,
		Seniors:     distributionservice.SeniorPromoterAdapter{Hierarchy: hierarchyModule.Service},
		Clock:       taskpg.SystemClock{},
		IDGen:       taskpg.UUIDGenerator{},
		Outbox:      outboxStore,
		Logger:      logger,
	})

	rewardModule := monthlyrewardservice.NewModule(monthlyrewardservice.Dependencies{
		Repo:         rewardRepo,
		Ledger:       rewardLedger,
		Commissions:  commissionModule.Service,
		Distributors: distributionservice.DistributorRoster{Repo: hierarchyRepo},
		Conditions: rewardservices.NewConditionRegistry(
			rewardservices.OrderQuantityCondition{MinOrders: cfg.RewardMinOrders},
		),
		Clock:  rewardpg.SystemClock{},
		IDGen:  rewardpg.UUIDGenerator{},
		Outbox: outboxStore,
		Logger: logger,

		Mode:        rewardports.ComputeMode(cfg.ComputeMode),
		ConditionID: cfg.RewardConditionID,
		StrategyID:  cfg.RewardStrategyID,
		Currency:    cfg.Currency,
	})

	distributionModule := distributionservice.NewModule(distributionservice.Dependencies{
		Hierarchy:  hierarchyModule.Service,
		Commission: commissionModule.Service,
		Tasks:      taskModule.Service,
		Rewards:    rewardModule.Service,
		Logger:     logger,
	})
	distributionModule.Hierarchy = hierarchyModule
	distributionModule.Commission = commissionModule
	distributionModule.Tasks = taskModule
	distributionModule.Rewards = rewardModule

	return &WorkerApp{
		postgres:     pg,
		distribution: distributionModule,
		monthlyClose: rewardworkers.MonthlyCloseJob{
			Service: rewardModule.Service,
			Logger:  logger,
		},
		relay: outbox.Relay{
			Source:    outboxStore,
			Publisher: bus,
			Topic:     eventsTopic,
			BatchSize: 100,
			Logger:    logger,
		},
		cron:         cron.New(),
		cronSpec:     cfg.MonthlyCloseCronSpec,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

// Distribution exposes the wired pipeline to consumers feeding orders in.
func (w *WorkerApp) Distribution() distributionservice.Module {
	return w.distribution
}

func (w *WorkerApp) Run(ctx context.Context) error {
	job := w.monthlyClose
	if _, err := w.cron.AddFunc(w.cronSpec, func() {
		_ = job.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	w.cron.Start()
	defer w.cron.Stop()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"monthly_close_cron", w.cronSpec,
	)

	for {
		if err := w.relay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

type migrator interface {
	AutoMigrate() error
}

func migrate(migrators ...migrator) error {
	for _, m := range migrators {
		if err := m.AutoMigrate(); err != nil {
			return err
		}
	}
	return nil
}
