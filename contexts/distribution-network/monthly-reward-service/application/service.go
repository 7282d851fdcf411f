package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"arbor/contexts/distribution-network/monthly-reward-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/monthly-reward-service/domain/errors"
	domainservices "arbor/contexts/distribution-network/monthly-reward-service/domain/services"
	"arbor/contexts/distribution-network/monthly-reward-service/ports"
	"arbor/internal/shared/events"
	"arbor/internal/shared/ledger"
	"arbor/internal/shared/money"
)

const (
	poolOwnerID     = "distribution-network"
	poolAccountType = "reward_pool"
)

type Service struct {
	Repo         ports.Repository
	Ledger       ledger.Client
	Commissions  ports.RewardCommissionSink
	Distributors ports.DistributorSource
	Conditions   *domainservices.ConditionRegistry
	Strategies   *domainservices.StrategyRegistry
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Outbox       ports.OutboxWriter
	Logger       *slog.Logger

	Mode        ports.ComputeMode
	ConditionID string
	StrategyID  string
	Currency    string
}

// HandleDistribution runs one placed order through pool accumulation and the
// condition/strategy bookkeeping. The pass is idempotent per order: a marker
// set after the whole pass suppresses replays, and a retry of a half-applied
// pass voids its earlier postings before reposting.
func (s Service) HandleDistribution(ctx context.Context, input ports.PoolOrderInput) error {
	if strings.TrimSpace(input.OrderID) == "" || strings.TrimSpace(input.DistributorID) == "" {
		return domainerrors.ErrInvalidInput
	}

	processed, err := s.Repo.IsOrderProcessed(ctx, input.OrderID)
	if err != nil {
		return err
	}
	if processed {
		resolveLogger(s.Logger).Debug("reward pass already processed",
			"event", "reward_pass_skipped",
			"module", "distribution-network/monthly-reward-service",
			"layer", "application",
			"order_id", input.OrderID,
		)
		return nil
	}
	if err := s.Ledger.VoidBySource(ctx, "order", input.OrderID); err != nil {
		return err
	}

	if err := s.accumulatePool(ctx, input); err != nil {
		return err
	}

	order := domainservices.PoolOrder{
		OrderID:       input.OrderID,
		DistributorID: input.DistributorID,
		OrderTotal:    input.OrderTotal,
		PlacedAt:      input.PlacedAt,
	}
	condition, err := s.Conditions.Resolve(s.ConditionID)
	if err != nil {
		return err
	}
	if err := condition.ElevateState(ctx, s.Ledger, order); err != nil {
		return err
	}
	strategy, err := s.Strategies.Resolve(s.StrategyID)
	if err != nil {
		return err
	}
	if err := strategy.ElevateState(ctx, s.Ledger, order); err != nil {
		return err
	}

	return s.Repo.MarkOrderProcessed(ctx, input.OrderID)
}

func (s Service) accumulatePool(ctx context.Context, input ports.PoolOrderInput) error {
	account, err := s.Ledger.CreateAccount(ctx, poolOwnerID, poolAccountType)
	if err != nil {
		return err
	}
	for _, item := range input.Items {
		contribution, err := s.poolContribution(item)
		if err != nil {
			return err
		}
		// Zero or negative contributions are skipped silently.
		if !contribution.IsPositive() {
			continue
		}
		if _, err := s.Ledger.CreateLedger(ctx, ledger.Entry{
			AccountID:  account.AccountID,
			Direction:  ledger.DirectionDebit,
			Amount:     contribution,
			Memo:       "reward pool contribution",
			SourceType: "order",
			SourceID:   input.OrderID,
			PostedAt:   input.PlacedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) poolContribution(item ports.PoolItem) (money.Money, error) {
	if !item.HasTarget {
		return money.Zero(item.UnitPrice.Currency), nil
	}
	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	var unit money.Money
	switch s.Mode {
	case ports.ComputeModeFixedAmount:
		unit = item.AmountReward
	case ports.ComputeModeDynamicPercentage:
		unit = item.UnitPrice.MulPercent(item.PercentageReward)
	default:
		return money.Money{}, domainerrors.ErrUnknownComputeMode
	}
	total := money.Zero(unit.Currency)
	for i := 0; i < quantity; i++ {
		sum, err := total.Add(unit)
		if err != nil {
			return money.Money{}, err
		}
		total = sum
	}
	return total, nil
}

// VoidOrder reverses a cancelled order's contribution by flipping its ledger
// rows invalid. The processed marker is cleared so a reinstated order could
// run a fresh pass.
func (s Service) VoidOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return domainerrors.ErrInvalidInput
	}
	if err := s.Ledger.VoidBySource(ctx, "order", orderID); err != nil {
		return err
	}
	if err := s.Repo.UnmarkOrderProcessed(ctx, orderID); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("reward pool reversed",
		"event", "reward_pool_reversed",
		"module", "distribution-network/monthly-reward-service",
		"layer", "application",
		"order_id", orderID,
	)
	return nil
}

// GenerateMonthlyCommissionStatement closes one month of the pool. The
// statement is created once with the frozen pool balance; distributors are
// processed independently and a rerun resumes past anyone already paid. Total
// assignment is capped at the pool even when the strategy misbehaves.
func (s Service) GenerateMonthlyCommissionStatement(ctx context.Context, month string) (entities.MonthlyStatement, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return entities.MonthlyStatement{}, domainerrors.ErrInvalidInput
	}

	statement, err := s.loadOrCreateStatement(ctx, month)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	logger := resolveLogger(s.Logger)
	if !statement.RewardTotal.IsPositive() {
		logger.Info("monthly close skipped, empty pool",
			"event", "monthly_close_empty",
			"module", "distribution-network/monthly-reward-service",
			"layer", "application",
			"month", month,
		)
		return statement, nil
	}

	condition, err := s.Conditions.Resolve(s.ConditionID)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	strategy, err := s.Strategies.Resolve(s.StrategyID)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	distributorIDs, err := s.Distributors.ListActiveDistributorIDs(ctx)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}

	run := domainservices.NewCloseRun()
	for _, distributorID := range distributorIDs {
		paid, err := s.Commissions.HasRewardCommission(ctx, statement.StatementID, distributorID)
		if err != nil {
			return entities.MonthlyStatement{}, err
		}
		if paid {
			continue
		}

		qualifies, err := condition.Evaluate(ctx, s.Ledger, distributorID, month)
		if err != nil {
			return entities.MonthlyStatement{}, err
		}
		if !qualifies {
			continue
		}

		amount, err := strategy.AssignReward(ctx, s.Ledger, run, distributorID, month, statement.RewardTotal)
		if err != nil {
			return entities.MonthlyStatement{}, err
		}
		if !amount.IsPositive() {
			continue
		}

		remaining := statement.Remaining()
		if cmp, err := amount.Cmp(remaining); err != nil {
			return entities.MonthlyStatement{}, err
		} else if cmp > 0 {
			logger.Warn("strategy overshoot capped at pool",
				"event", "reward_assignment_capped",
				"module", "distribution-network/monthly-reward-service",
				"layer", "application",
				"month", month,
				"distributor_id", distributorID,
				"requested", amount.String(),
				"remaining", remaining.String(),
			)
			amount = remaining
		}
		if !amount.IsPositive() {
			continue
		}

		if err := s.Commissions.AppendRewardCommission(ctx, distributorID, amount, statement.StatementID); err != nil {
			return entities.MonthlyStatement{}, err
		}
		assigned, err := statement.RewardAssigned.Add(amount)
		if err != nil {
			return entities.MonthlyStatement{}, err
		}
		statement.RewardAssigned = assigned
		statement.QuantityAssigned++
		statement.UpdatedAt = s.now()
		// Persist after every payout so an aborted close resumes here.
		if err := s.Repo.UpdateStatement(ctx, statement); err != nil {
			return entities.MonthlyStatement{}, err
		}
	}

	if err := s.appendCloseNotice(ctx, statement); err != nil {
		return entities.MonthlyStatement{}, err
	}
	logger.Info("monthly statement generated",
		"event", "monthly_statement_generated",
		"module", "distribution-network/monthly-reward-service",
		"layer", "application",
		"month", month,
		"reward_total", statement.RewardTotal.String(),
		"reward_assigned", statement.RewardAssigned.String(),
		"quantity_assigned", statement.QuantityAssigned,
	)
	return statement, nil
}

func (s Service) loadOrCreateStatement(ctx context.Context, month string) (entities.MonthlyStatement, error) {
	existing, err := s.Repo.GetStatementByMonth(ctx, month)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainerrors.ErrStatementNotFound) {
		return entities.MonthlyStatement{}, err
	}

	account, err := s.Ledger.CreateAccount(ctx, poolOwnerID, poolAccountType)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	pool, err := s.Ledger.Balance(ctx, account.AccountID, month)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	if pool.Currency == "" {
		pool = money.Zero(s.Currency)
	}

	statementID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	statement := entities.MonthlyStatement{
		StatementID:    statementID,
		Month:          month,
		RewardTotal:    pool,
		RewardAssigned: money.Zero(pool.Currency),
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	}
	if err := s.Repo.CreateStatement(ctx, statement); err != nil {
		return entities.MonthlyStatement{}, err
	}
	return statement, nil
}

func (s Service) appendCloseNotice(ctx context.Context, statement entities.MonthlyStatement) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:        eventID,
		EventType:      events.TypeMonthlyStatementGenerated,
		SourceService:  "distribution-network/monthly-reward-service",
		OccurredAtUTC:  s.now(),
		EntityType:     "monthly_statement",
		EntityID:       statement.StatementID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"month":             statement.Month,
			"reward_total":      statement.RewardTotal.String(),
			"reward_assigned":   statement.RewardAssigned.String(),
			"quantity_assigned": statement.QuantityAssigned,
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
