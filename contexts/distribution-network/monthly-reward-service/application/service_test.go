package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	monthlyrewardservice "arbor/contexts/distribution-network/monthly-reward-service"
	domainservices "arbor/contexts/distribution-network/monthly-reward-service/domain/services"
	"arbor/contexts/distribution-network/monthly-reward-service/ports"
	"arbor/internal/shared/ledger"
	"arbor/internal/shared/money"
)

func poolOrder(orderID string, distributorID string, total float64, placedAt time.Time) ports.PoolOrderInput {
	return ports.PoolOrderInput{
		OrderID:       orderID,
		DistributorID: distributorID,
		OrderTotal:    money.FromFloat(total, "CNY"),
		PlacedAt:      placedAt,
		Items: []ports.PoolItem{
			{
				OrderItemID:      orderID + "-item-1",
				PurchasableID:    "sku-1",
				UnitPrice:        money.FromFloat(total, "CNY"),
				Quantity:         1,
				HasTarget:        true,
				PercentageReward: decimal.NewFromInt(10),
				AmountReward:     money.FromFloat(3, "CNY"),
			},
		},
	}
}

func poolBalance(t *testing.T, module monthlyrewardservice.Module, month string) money.Money {
	t.Helper()
	ctx := context.Background()
	account, err := module.Ledger.CreateAccount(ctx, "distribution-network", "reward_pool")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	balance, err := module.Ledger.Balance(ctx, account.AccountID, month)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return balance
}

func TestHandleDistributionAccumulatesPoolIdempotently(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	input := poolOrder("order-1", "dist-1", 200, placedAt)
	if err := module.Service.HandleDistribution(ctx, input); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, input); err != nil {
		t.Fatalf("HandleDistribution replay: %v", err)
	}

	// 10% of 200.00, once.
	if got := poolBalance(t, module, "2026-03").String(); got != "20.00 CNY" {
		t.Fatalf("pool balance = %s, want 20.00 CNY", got)
	}
}

func TestHandleDistributionFixedModeAndZeroContribution(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	module.Service.Mode = ports.ComputeModeFixedAmount
	ctx := context.Background()

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 200, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}

	// Items without a target contribute nothing and are not an error.
	bare := poolOrder("order-2", "dist-1", 100, placedAt)
	bare.Items[0].HasTarget = false
	if err := module.Service.HandleDistribution(ctx, bare); err != nil {
		t.Fatalf("HandleDistribution bare item: %v", err)
	}

	if got := poolBalance(t, module, "2026-03").String(); got != "3.00 CNY" {
		t.Fatalf("pool balance = %s, want 3.00 CNY", got)
	}
}

func TestVoidOrderReversesPoolWithoutDeletingRows(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 200, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.VoidOrder(ctx, "order-1"); err != nil {
		t.Fatalf("VoidOrder: %v", err)
	}

	if got := poolBalance(t, module, "2026-03"); !got.IsZero() {
		t.Fatalf("pool balance after void = %s, want zero", got)
	}
	entries, err := module.Ledger.ListEntries(ctx, ledger.EntryFilter{SourceType: "order", SourceID: "order-1"})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("void deleted ledger rows")
	}
	for _, entry := range entries {
		if entry.Valid {
			t.Fatalf("entry %s still valid after void", entry.EntryID)
		}
	}
}

func TestGenerateMonthlyStatementSplitsPoolByAchievement(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()
	module.Store.AddDistributor("dist-1")
	module.Store.AddDistributor("dist-2")
	module.Store.AddDistributor("dist-idle")

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// dist-1 sells 300, dist-2 sells 100; pool accumulates 10% of each.
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 300, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-2", "dist-2", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}

	statement, err := module.Service.GenerateMonthlyCommissionStatement(ctx, "2026-03")
	if err != nil {
		t.Fatalf("GenerateMonthlyCommissionStatement: %v", err)
	}

	if statement.RewardTotal.String() != "40.00 CNY" {
		t.Fatalf("reward total = %s, want 40.00 CNY", statement.RewardTotal)
	}
	payouts := module.Store.RewardCommissions(statement.StatementID)
	if got := payouts["dist-1"].String(); got != "30.00 CNY" {
		t.Fatalf("dist-1 payout = %s, want 30.00 CNY", got)
	}
	if got := payouts["dist-2"].String(); got != "10.00 CNY" {
		t.Fatalf("dist-2 payout = %s, want 10.00 CNY", got)
	}
	if _, paid := payouts["dist-idle"]; paid {
		t.Fatalf("idle distributor was paid")
	}
	if statement.QuantityAssigned != 2 {
		t.Fatalf("quantity assigned = %d, want 2", statement.QuantityAssigned)
	}
	if cmp, err := statement.RewardAssigned.Cmp(statement.RewardTotal); err != nil || cmp > 0 {
		t.Fatalf("assigned %s exceeds total %s", statement.RewardAssigned, statement.RewardTotal)
	}
}

func TestGenerateMonthlyStatementResumesPastPaidDistributors(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()
	module.Store.AddDistributor("dist-1")
	module.Store.AddDistributor("dist-2")

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-2", "dist-2", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}

	first, err := module.Service.GenerateMonthlyCommissionStatement(ctx, "2026-03")
	if err != nil {
		t.Fatalf("first close: %v", err)
	}
	second, err := module.Service.GenerateMonthlyCommissionStatement(ctx, "2026-03")
	if err != nil {
		t.Fatalf("second close: %v", err)
	}

	if second.StatementID != first.StatementID {
		t.Fatalf("rerun created a new statement")
	}
	if second.QuantityAssigned != first.QuantityAssigned {
		t.Fatalf("rerun re-paid distributors: %d vs %d", second.QuantityAssigned, first.QuantityAssigned)
	}
	if got := len(module.Store.RewardCommissions(first.StatementID)); got != 2 {
		t.Fatalf("reward commissions = %d, want 2", got)
	}
}

// greedyStrategy claims the full pool for everyone, exercising the cap.
type greedyStrategy struct{}

func (greedyStrategy) ID() string { return "greedy" }

func (greedyStrategy) ElevateState(context.Context, ledger.Client, domainservices.PoolOrder) error {
	return nil
}

func (greedyStrategy) AssignReward(_ context.Context, _ ledger.Client, _ *domainservices.CloseRun, _ string, _ string, pool money.Money) (money.Money, error) {
	return pool, nil
}

func TestGenerateMonthlyStatementCapsMisbehavingStrategy(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()
	module.Store.AddDistributor("dist-1")
	module.Store.AddDistributor("dist-2")
	module.Service.Strategies = domainservices.NewStrategyRegistry(greedyStrategy{})
	module.Service.StrategyID = "greedy"

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-2", "dist-2", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}

	statement, err := module.Service.GenerateMonthlyCommissionStatement(ctx, "2026-03")
	if err != nil {
		t.Fatalf("GenerateMonthlyCommissionStatement: %v", err)
	}

	if cmp, err := statement.RewardAssigned.Cmp(statement.RewardTotal); err != nil || cmp > 0 {
		t.Fatalf("assigned %s exceeds total %s", statement.RewardAssigned, statement.RewardTotal)
	}
	// First distributor takes the whole pool; the second is capped to zero
	// and skipped.
	if statement.QuantityAssigned != 1 {
		t.Fatalf("quantity assigned = %d, want 1", statement.QuantityAssigned)
	}
}

func TestConditionMinimumOrdersGatesPayout(t *testing.T) {
	module := monthlyrewardservice.NewInMemoryModule(nil)
	ctx := context.Background()
	module.Store.AddDistributor("dist-1")
	module.Store.AddDistributor("dist-2")
	module.Service.Conditions = domainservices.NewConditionRegistry(domainservices.OrderQuantityCondition{MinOrders: 2})

	placedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-1", "dist-1", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-2", "dist-1", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}
	if err := module.Service.HandleDistribution(ctx, poolOrder("order-3", "dist-2", 100, placedAt)); err != nil {
		t.Fatalf("HandleDistribution: %v", err)
	}

	statement, err := module.Service.GenerateMonthlyCommissionStatement(ctx, "2026-03")
	if err != nil {
		t.Fatalf("GenerateMonthlyCommissionStatement: %v", err)
	}

	payouts := module.Store.RewardCommissions(statement.StatementID)
	if _, paid := payouts["dist-1"]; !paid {
		t.Fatalf("dist-1 met the order minimum but was not paid")
	}
	if _, paid := payouts["dist-2"]; paid {
		t.Fatalf("dist-2 below the order minimum was paid")
	}
}
