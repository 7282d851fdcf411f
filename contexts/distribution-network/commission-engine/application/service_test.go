package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	commissionengine "arbor/contexts/distribution-network/commission-engine"
	"arbor/contexts/distribution-network/commission-engine/adapters/memory"
	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	domainerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
	"arbor/contexts/distribution-network/commission-engine/ports"
	"arbor/internal/shared/money"
)

func pct(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func seedTarget(store *memory.Store, levels ...float64) entities.Target {
	target := entities.Target{
		TargetID:            "target-1",
		PurchasableID:       "sku-1",
		Currency:            "CNY",
		Active:              true,
		PercentagePromotion: pct(5),
		PercentageChain:     pct(10),
		PercentageLeader:    pct(3),
		PercentageReward:    pct(1),
		AmountOff:           money.Zero("CNY"),
		AmountPromotion:     money.FromFloat(2, "CNY"),
		AmountChain:         money.FromFloat(1.5, "CNY"),
		AmountLeader:        money.FromFloat(1, "CNY"),
		AmountReward:        money.FromFloat(0.5, "CNY"),
	}
	store.PutTarget(target)
	for i, percentage := range levels {
		store.PutLevel(entities.Level{
			TargetID:    target.TargetID,
			LevelNumber: i + 1,
			Percentage:  pct(percentage),
			Active:      true,
		})
	}
	return target
}

func nodes(ids ...string) []ports.ChainNode {
	items := make([]ports.ChainNode, 0, len(ids))
	for _, id := range ids {
		items = append(items, ports.ChainNode{DistributorID: id, Active: true})
	}
	return items
}

func buildEvent(t *testing.T, module commissionengine.Module, target entities.Target, price float64) entities.Event {
	t.Helper()
	event, err := module.Service.BuildEvent(
		context.Background(), "order-1", "item-1", "buyer", target, money.FromFloat(price, "CNY"), false,
	)
	if err != nil {
		t.Fatalf("build event failed: %v", err)
	}
	return event
}

func TestChainCommissionsOneRowPerActiveLevel(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50, 30, 20)
	event := buildEvent(t, module, target, 100)

	commissions, err := module.Service.ChainCommissions(
		context.Background(), event, target,
		ports.ChainNode{DistributorID: "buyer", Active: true},
		nodes("up1", "up2", "up3"),
	)
	if err != nil {
		t.Fatalf("chain commissions failed: %v", err)
	}
	if len(commissions) != 3 {
		t.Fatalf("expected 3 chain rows, got %d", len(commissions))
	}
	// base 10.00 CNY (10% of 100) decayed per level.
	wantAmounts := []string{"5.00 CNY", "3.00 CNY", "2.00 CNY"}
	for i, commission := range commissions {
		if commission.Type != entities.CommissionTypeChain {
			t.Fatalf("row %d has type %s", i, commission.Type)
		}
		if commission.LevelNumber != i+1 {
			t.Fatalf("row %d has level %d", i, commission.LevelNumber)
		}
		if commission.Amount.String() != wantAmounts[i] {
			t.Fatalf("row %d amount %s, want %s", i, commission.Amount, wantAmounts[i])
		}
	}
}

func TestChainStopsAtMissingLevelEvenWithUpstreamLeft(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50) // only level 1 defined
	event := buildEvent(t, module, target, 100)

	commissions, err := module.Service.ChainCommissions(
		context.Background(), event, target,
		ports.ChainNode{DistributorID: "buyer", Active: true},
		nodes("up1", "up2"),
	)
	if err != nil {
		t.Fatalf("chain commissions failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("expected chain to stop after level 1, got %d rows", len(commissions))
	}
	if commissions[0].DistributorID != "up1" || commissions[0].Amount.String() != "5.00 CNY" {
		t.Fatalf("unexpected level-1 row: %+v", commissions[0])
	}
}

func TestChainStopsAtInactiveLevel(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50, 30, 20)
	module.Store.PutLevel(entities.Level{
		TargetID: target.TargetID, LevelNumber: 2, Percentage: pct(30), Active: false,
	})
	event := buildEvent(t, module, target, 100)

	commissions, err := module.Service.ChainCommissions(
		context.Background(), event, target,
		ports.ChainNode{DistributorID: "buyer", Active: true},
		nodes("up1", "up2", "up3"),
	)
	if err != nil {
		t.Fatalf("chain commissions failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("inactive level must terminate the chain, got %d rows", len(commissions))
	}
}

func TestSelfCommissionConsumesFirstLevelSlot(t *testing.T) {
	store := memory.NewStore()
	module := commissionengine.NewModule(commissionengine.Dependencies{
		Repository:             store,
		Clock:                  store,
		IDGen:                  store,
		EnableSelfCommission:   true,
		SelfOccupiesFirstLevel: true,
	})
	module.Store = store
	target := seedTarget(store, 50, 30)
	event := buildEvent(t, module, target, 100)

	commissions, err := module.Service.ChainCommissions(
		context.Background(), event, target,
		ports.ChainNode{DistributorID: "buyer", Active: true},
		nodes("up1", "up2"),
	)
	if err != nil {
		t.Fatalf("chain commissions failed: %v", err)
	}
	if len(commissions) != 2 {
		t.Fatalf("expected buyer + one upstream hop, got %d rows", len(commissions))
	}
	if commissions[0].DistributorID != "buyer" || commissions[0].LevelNumber != 1 {
		t.Fatalf("expected buyer on level 1, got %+v", commissions[0])
	}
	if commissions[1].DistributorID != "up1" || commissions[1].LevelNumber != 2 {
		t.Fatalf("expected first upstream hop shifted to level 2, got %+v", commissions[1])
	}
}

func TestFixedAmountModeUsesTargetAmounts(t *testing.T) {
	store := memory.NewStore()
	module := commissionengine.NewModule(commissionengine.Dependencies{
		Repository: store,
		Clock:      store,
		IDGen:      store,
		Mode:       ports.ComputeModeFixedAmount,
	})
	module.Store = store
	target := seedTarget(store, 50)

	amount, err := module.Service.ComputeCommissionAmount(
		target, entities.CommissionTypePromotion, money.FromFloat(100, "CNY"), false,
	)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if amount.String() != "2.00 CNY" {
		t.Fatalf("expected fixed promotion amount 2.00 CNY, got %s", amount)
	}
}

func TestSeniorBaseOverrideAppliesWhenEnabled(t *testing.T) {
	store := memory.NewStore()
	module := commissionengine.NewModule(commissionengine.Dependencies{
		Repository:              store,
		Clock:                   store,
		IDGen:                   store,
		EnableSeniorDistributor: true,
	})
	module.Store = store
	target := seedTarget(store, 50)
	seniorPct := pct(20)
	target.PercentageChainSenior = &seniorPct

	amount, err := module.Service.ComputeCommissionAmount(
		target, entities.CommissionTypeChain, money.FromFloat(100, "CNY"), true,
	)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if amount.String() != "20.00 CNY" {
		t.Fatalf("expected senior chain base 20.00 CNY, got %s", amount)
	}

	regular, err := module.Service.ComputeCommissionAmount(
		target, entities.CommissionTypeChain, money.FromFloat(100, "CNY"), false,
	)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if regular.String() != "10.00 CNY" {
		t.Fatalf("expected regular chain base 10.00 CNY, got %s", regular)
	}
}

func TestLeaderCommissionPaysNearestActiveLeaderOnly(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50)
	event := buildEvent(t, module, target, 100)

	upstream := []ports.ChainNode{
		{DistributorID: "up1", Active: true},
		{DistributorID: "up2", Active: true, IsLeader: true},
		{DistributorID: "up3", Active: true, IsLeader: true},
	}
	commissions, err := module.Service.LeaderCommissions(context.Background(), event, upstream)
	if err != nil {
		t.Fatalf("leader commissions failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("expected single leader payout, got %d", len(commissions))
	}
	if commissions[0].DistributorID != "up2" || commissions[0].Amount.String() != "3.00 CNY" {
		t.Fatalf("unexpected leader payout: %+v", commissions[0])
	}
}

func TestGroupLeaderCutRespectsSlotLimit(t *testing.T) {
	store := memory.NewStore()
	module := commissionengine.NewModule(commissionengine.Dependencies{
		Repository:            store,
		Clock:                 store,
		IDGen:                 store,
		GroupLeaderPercentage: pct(50),
		GroupQuantityLimit:    1,
	})
	module.Store = store
	target := seedTarget(store, 50)
	event := buildEvent(t, module, target, 100)
	ctx := context.Background()

	upstream := []ports.ChainNode{
		{DistributorID: "near-leader", Active: true, IsLeader: true},
		{DistributorID: "group-leader", Active: true, IsLeader: true},
	}
	first, err := module.Service.LeaderCommissions(ctx, event, upstream)
	if err != nil {
		t.Fatalf("leader commissions failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected primary + group cut, got %d", len(first))
	}
	if first[1].DistributorID != "group-leader" || first[1].Amount.String() != "1.50 CNY" {
		t.Fatalf("unexpected group cut: %+v", first[1])
	}
	if first[1].GroupLeaderFor != "near-leader" {
		t.Fatalf("group cut should reference primary leader, got %q", first[1].GroupLeaderFor)
	}
	if err := module.Service.RecordPass(ctx, []entities.Event{event}, first); err != nil {
		t.Fatalf("record pass failed: %v", err)
	}

	// Slot limit of 1 is now used up for group-leader.
	event2, err := module.Service.BuildEvent(ctx, "order-2", "item-2", "buyer", target, money.FromFloat(100, "CNY"), false)
	if err != nil {
		t.Fatalf("build second event failed: %v", err)
	}
	second, err := module.Service.LeaderCommissions(ctx, event2, upstream)
	if err != nil {
		t.Fatalf("second leader commissions failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected group cut suppressed by slot limit, got %d rows", len(second))
	}
}

func TestPriceAdjustmentCapsAtUnitPriceAndSkipsMismatch(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50)
	ctx := context.Background()

	target.AmountOff = money.FromFloat(120, "CNY")
	adjustment, err := module.Service.ComputePriceAdjustment(ctx, target, money.FromFloat(100, "CNY"), money.Zero("CNY"))
	if err != nil {
		t.Fatalf("adjustment failed: %v", err)
	}
	if adjustment.Skipped || adjustment.Amount.String() != "100.00 CNY" {
		t.Fatalf("expected cap at unit price, got %+v", adjustment)
	}

	target.AmountOff = money.FromFloat(10, "USD")
	mismatch, err := module.Service.ComputePriceAdjustment(ctx, target, money.FromFloat(100, "CNY"), money.Zero("CNY"))
	if err != nil {
		t.Fatalf("mismatch adjustment failed: %v", err)
	}
	if !mismatch.Skipped {
		t.Fatalf("expected skip on currency mismatch, got %+v", mismatch)
	}
}

func TestVoidOrderFlipsValidWithoutDeletingRows(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50)
	event := buildEvent(t, module, target, 100)
	ctx := context.Background()

	commissions, err := module.Service.ChainCommissions(
		ctx, event, target, ports.ChainNode{DistributorID: "buyer", Active: true}, nodes("up1"),
	)
	if err != nil {
		t.Fatalf("chain commissions failed: %v", err)
	}
	if err := module.Service.RecordPass(ctx, []entities.Event{event}, commissions); err != nil {
		t.Fatalf("record pass failed: %v", err)
	}

	if err := module.Service.VoidOrder(ctx, "order-1"); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	valid, err := module.Service.ListCommissions(ctx, ports.CommissionFilter{DistributorID: "up1", ValidOnly: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(valid) != 0 {
		t.Fatalf("expected no valid commissions after void, got %d", len(valid))
	}
	all, err := module.Service.ListCommissions(ctx, ports.CommissionFilter{DistributorID: "up1"})
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 1 || all[0].Valid {
		t.Fatalf("expected voided row to remain, got %+v", all)
	}
}

func TestRecordPassRejectsUnknownCommissionType(t *testing.T) {
	module := commissionengine.NewInMemoryModule(nil)
	target := seedTarget(module.Store, 50)
	event := buildEvent(t, module, target, 100)

	err := module.Service.RecordPass(context.Background(), []entities.Event{event}, []entities.Commission{{
		CommissionID:  "c-1",
		Type:          entities.CommissionType("mystery"),
		DistributorID: "up1",
		Amount:        money.FromFloat(1, "CNY"),
		EventID:       event.EventID,
	}})
	if !errors.Is(err, domainerrors.ErrPluginNotFound) {
		t.Fatalf("expected plugin-not-found, got %v", err)
	}
}
