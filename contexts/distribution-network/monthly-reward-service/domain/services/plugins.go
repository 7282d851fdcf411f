// Package services holds the pluggable reward policies. Conditions decide
// which distributors qualify for the monthly pool; strategies decide how the
// pool splits between them. Both families keep their running state in the
// external ledger so a close run can always be re-derived; nothing is cached
// across invocations outside an explicit CloseRun.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "arbor/contexts/distribution-network/monthly-reward-service/domain/errors"
	"arbor/internal/shared/ledger"
	"arbor/internal/shared/money"
)

// PoolOrder is the slice of an order the reward plugins see.
type PoolOrder struct {
	OrderID       string
	DistributorID string
	OrderTotal    money.Money
	PlacedAt      time.Time
}

// Condition gates a distributor's eligibility for the monthly pool.
// ElevateState runs once per order and may post its own bookkeeping entries;
// Evaluate reads them back at close.
type Condition interface {
	ID() string
	ElevateState(ctx context.Context, led ledger.Client, order PoolOrder) error
	Evaluate(ctx context.Context, led ledger.Client, distributorID string, month string) (bool, error)
}

// Strategy splits the pool between qualifying distributors. AssignReward
// returns one distributor's share; shares across a close run must sum to at
// most the pool, which the engine still enforces defensively.
type Strategy interface {
	ID() string
	ElevateState(ctx context.Context, led ledger.Client, order PoolOrder) error
	AssignReward(ctx context.Context, led ledger.Client, run *CloseRun, distributorID string, month string, pool money.Money) (money.Money, error)
}

const (
	ConditionOrderQuantity = "order_quantity"
	StrategyByAchievement  = "by_achievement"

	accountTypeConditionOrders = "reward_condition_orders"
	accountTypeAchievement     = "reward_achievement"
)

// CloseRun memoizes ledger aggregates for one monthly-close invocation. It is
// created fresh per run and thrown away with it, so restarts and concurrent
// closes never see stale totals.
type CloseRun struct {
	globalAchievement *decimal.Decimal
}

func NewCloseRun() *CloseRun { return &CloseRun{} }

type ConditionRegistry struct {
	byID map[string]Condition
}

func NewConditionRegistry(conditions ...Condition) *ConditionRegistry {
	registry := &ConditionRegistry{byID: make(map[string]Condition, len(conditions))}
	for _, condition := range conditions {
		registry.byID[condition.ID()] = condition
	}
	return registry
}

func DefaultConditionRegistry() *ConditionRegistry {
	return NewConditionRegistry(OrderQuantityCondition{MinOrders: 1})
}

func (r *ConditionRegistry) Resolve(id string) (Condition, error) {
	condition, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("reward condition %q: %w", id, domainerrors.ErrPluginNotFound)
	}
	return condition, nil
}

type StrategyRegistry struct {
	byID map[string]Strategy
}

func NewStrategyRegistry(strategies ...Strategy) *StrategyRegistry {
	registry := &StrategyRegistry{byID: make(map[string]Strategy, len(strategies))}
	for _, strategy := range strategies {
		registry.byID[strategy.ID()] = strategy
	}
	return registry
}

func DefaultStrategyRegistry() *StrategyRegistry {
	return NewStrategyRegistry(ByAchievementStrategy{})
}

func (r *StrategyRegistry) Resolve(id string) (Strategy, error) {
	strategy, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("reward strategy %q: %w", id, domainerrors.ErrPluginNotFound)
	}
	return strategy, nil
}

// OrderQuantityCondition qualifies a distributor for a month once they placed
// at least MinOrders orders in it. Each order posts one unit entry to the
// distributor's condition account; evaluation counts the valid rows back.
type OrderQuantityCondition struct {
	MinOrders int
}

func (OrderQuantityCondition) ID() string { return ConditionOrderQuantity }

func (c OrderQuantityCondition) ElevateState(ctx context.Context, led ledger.Client, order PoolOrder) error {
	account, err := led.CreateAccount(ctx, order.DistributorID, accountTypeConditionOrders)
	if err != nil {
		return err
	}
	_, err = led.CreateLedger(ctx, ledger.Entry{
		AccountID:  account.AccountID,
		Direction:  ledger.DirectionDebit,
		Amount:     money.FromFloat(1, order.OrderTotal.Currency),
		Memo:       "qualifying order",
		SourceType: "order",
		SourceID:   order.OrderID,
		PostedAt:   order.PlacedAt,
	})
	return err
}

func (c OrderQuantityCondition) Evaluate(ctx context.Context, led ledger.Client, distributorID string, month string) (bool, error) {
	account, err := led.CreateAccount(ctx, distributorID, accountTypeConditionOrders)
	if err != nil {
		return false, err
	}
	entries, err := led.ListEntries(ctx, ledger.EntryFilter{
		AccountID: account.AccountID,
		Month:     month,
		ValidOnly: true,
	})
	if err != nil {
		return false, err
	}
	minimum := c.MinOrders
	if minimum <= 0 {
		minimum = 1
	}
	return len(entries) >= minimum, nil
}

// ByAchievementStrategy tracks each distributor's order value as a monthly
// achievement subtotal and pays out the pool proportionally to it. The global
// denominator is computed once per CloseRun from the ledger, never from a
// process-wide cache.
type ByAchievementStrategy struct{}

func (ByAchievementStrategy) ID() string { return StrategyByAchievement }

func (ByAchievementStrategy) ElevateState(ctx context.Context, led ledger.Client, order PoolOrder) error {
	if !order.OrderTotal.IsPositive() {
		return nil
	}
	account, err := led.CreateAccount(ctx, order.DistributorID, accountTypeAchievement)
	if err != nil {
		return err
	}
	_, err = led.CreateLedger(ctx, ledger.Entry{
		AccountID:  account.AccountID,
		Direction:  ledger.DirectionDebit,
		Amount:     order.OrderTotal,
		Memo:       "achievement subtotal",
		SourceType: "order",
		SourceID:   order.OrderID,
		PostedAt:   order.PlacedAt,
	})
	return err
}

func (s ByAchievementStrategy) AssignReward(ctx context.Context, led ledger.Client, run *CloseRun, distributorID string, month string, pool money.Money) (money.Money, error) {
	global, err := s.globalAchievement(ctx, led, run, month)
	if err != nil {
		return money.Money{}, err
	}
	if !global.IsPositive() {
		return money.Zero(pool.Currency), nil
	}

	account, err := led.CreateAccount(ctx, distributorID, accountTypeAchievement)
	if err != nil {
		return money.Money{}, err
	}
	achievement, err := led.Balance(ctx, account.AccountID, month)
	if err != nil {
		return money.Money{}, err
	}
	if !achievement.IsPositive() {
		return money.Zero(pool.Currency), nil
	}

	share := achievement.Amount.Div(global)
	return pool.MulRatio(share), nil
}

func (ByAchievementStrategy) globalAchievement(ctx context.Context, led ledger.Client, run *CloseRun, month string) (decimal.Decimal, error) {
	if run != nil && run.globalAchievement != nil {
		return *run.globalAchievement, nil
	}

	accounts, err := led.GetAccountsByType(ctx, accountTypeAchievement)
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for _, account := range accounts {
		balance, err := led.Balance(ctx, account.AccountID, month)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if balance.IsPositive() {
			total = total.Add(balance.Amount)
		}
	}
	if run != nil {
		run.globalAchievement = &total
	}
	return total, nil
}
