package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	taskachievementservice "arbor/contexts/distribution-network/task-achievement-service"
	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/task-achievement-service/domain/errors"
	domainservices "arbor/contexts/distribution-network/task-achievement-service/domain/services"
	"arbor/contexts/distribution-network/task-achievement-service/ports"
	"arbor/internal/shared/events"
	"arbor/internal/shared/money"
)

func newModule(t *testing.T) taskachievementservice.Module {
	t.Helper()
	return taskachievementservice.NewInMemoryModule(nil)
}

func orderTask(taskID string, quantity float64, cycleDays int) entities.Task {
	return entities.Task{
		TaskID:    taskID,
		Title:     "sell it",
		TypeID:    domainservices.TaskTypeOrderAmount,
		Reward:    money.FromFloat(5, "CNY"),
		CycleDays: cycleDays,
		Quantity:  quantity,
		MinAmount: money.FromFloat(50, "CNY"),
		Active:    true,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func scoreInput(orderID string, distributorID string, upstreamID string, total float64, placedAt time.Time) ports.OrderScoreInput {
	return ports.OrderScoreInput{
		OrderID:               orderID,
		DistributorID:         distributorID,
		UpstreamDistributorID: upstreamID,
		OrderTotal:            money.FromFloat(total, "CNY"),
		PlacedAt:              placedAt,
	}
}

func TestScoreOrderAccumulatesAndCompletesOnce(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	module.Store.PutTask(orderTask("task-1", 2, 0))
	acceptance, err := module.Service.Accept(ctx, "dist-1", "task-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	placedAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-1", "", 60, placedAt)); err != nil {
		t.Fatalf("ScoreOrder first: %v", err)
	}
	got, err := module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if err != nil {
		t.Fatalf("GetAcceptance: %v", err)
	}
	if got.Achievement != 1 || got.Completed {
		t.Fatalf("after first order: achievement=%v completed=%v", got.Achievement, got.Completed)
	}

	if err := module.Service.ScoreOrder(ctx, scoreInput("order-2", "dist-1", "", 80, placedAt)); err != nil {
		t.Fatalf("ScoreOrder second: %v", err)
	}
	got, _ = module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if got.Achievement != 2 || !got.Completed || got.CompletedAt == nil {
		t.Fatalf("after second order: achievement=%v completed=%v", got.Achievement, got.Completed)
	}
	if count := module.Store.TaskCommissionCount("dist-1"); count != 1 {
		t.Fatalf("task commissions = %d, want 1", count)
	}

	// A third qualifying order keeps accumulating but never re-fires effects.
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-3", "dist-1", "", 90, placedAt)); err != nil {
		t.Fatalf("ScoreOrder third: %v", err)
	}
	got, _ = module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if got.Achievement != 3 {
		t.Fatalf("achievement after third order = %v, want 3", got.Achievement)
	}
	if count := module.Store.TaskCommissionCount("dist-1"); count != 1 {
		t.Fatalf("task commissions after third order = %d, want 1", count)
	}

	completions := 0
	for _, envelope := range module.Store.ListOutbox() {
		if envelope.EventType == events.TypeTaskCompleted {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("completion events = %d, want 1", completions)
	}
}

func TestScoreOrderExpiredCycleScoresZero(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	accepted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	module.Store.SetNow(func() time.Time { return accepted })
	module.Store.PutTask(orderTask("task-1", 1, 7))
	acceptance, err := module.Service.Accept(ctx, "dist-1", "task-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Day 10 of a 7-day cycle: the order lands outside the window.
	placedAt := accepted.Add(10 * 24 * time.Hour)
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-1", "", 100, placedAt)); err != nil {
		t.Fatalf("ScoreOrder: %v", err)
	}

	got, err := module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if err != nil {
		t.Fatalf("GetAcceptance: %v", err)
	}
	if got.Achievement != 0 || got.Completed {
		t.Fatalf("expired acceptance scored: achievement=%v completed=%v", got.Achievement, got.Completed)
	}
}

func TestScoreOrderReplaySameOrderIsIgnored(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	module.Store.PutTask(orderTask("task-1", 5, 0))
	acceptance, err := module.Service.Accept(ctx, "dist-1", "task-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	placedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	input := scoreInput("order-1", "dist-1", "", 60, placedAt)
	if err := module.Service.ScoreOrder(ctx, input); err != nil {
		t.Fatalf("ScoreOrder: %v", err)
	}
	if err := module.Service.ScoreOrder(ctx, input); err != nil {
		t.Fatalf("ScoreOrder replay: %v", err)
	}

	got, _ := module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if got.Achievement != 1 {
		t.Fatalf("achievement after replay = %v, want 1", got.Achievement)
	}
}

func TestScoreOrderDownstreamGrowthCreditsUpstream(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	task := orderTask("task-growth", 1, 0)
	task.TypeID = domainservices.TaskTypeDownstreamGrowth
	module.Store.PutTask(task)
	acceptance, err := module.Service.Accept(ctx, "dist-up", "task-growth")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	placedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-down", "dist-up", 60, placedAt)); err != nil {
		t.Fatalf("ScoreOrder: %v", err)
	}

	got, _ := module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if got.Achievement != 1 || !got.Completed {
		t.Fatalf("upstream acceptance: achievement=%v completed=%v", got.Achievement, got.Completed)
	}

	// The purchaser's own order never scores a growth task it holds itself.
	if _, err := module.Service.Accept(ctx, "dist-down", "task-growth"); err != nil {
		t.Fatalf("Accept downstream: %v", err)
	}
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-2", "dist-down", "dist-up", 60, placedAt)); err != nil {
		t.Fatalf("ScoreOrder own: %v", err)
	}
	own, _ := module.Service.Repo.ListAcceptancesByDistributor(ctx, "dist-down")
	if len(own) != 1 || own[0].Achievement != 0 {
		t.Fatalf("downstream growth acceptance scored from own order: %+v", own)
	}
}

func TestScoreOrderBelowMinimumAndMixedCurrencyScoreZero(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	module.Store.PutTask(orderTask("task-1", 1, 0))
	acceptance, err := module.Service.Accept(ctx, "dist-1", "task-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	placedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-1", "", 49.99, placedAt)); err != nil {
		t.Fatalf("ScoreOrder below minimum: %v", err)
	}

	mixed := scoreInput("order-2", "dist-1", "", 60, placedAt)
	mixed.OrderTotal = money.FromFloat(60, "USD")
	if err := module.Service.ScoreOrder(ctx, mixed); err != nil {
		t.Fatalf("ScoreOrder mixed currency: %v", err)
	}

	got, _ := module.Service.Repo.GetAcceptance(ctx, acceptance.AcceptanceID)
	if got.Achievement != 0 {
		t.Fatalf("achievement = %v, want 0", got.Achievement)
	}
}

func TestScoreOrderUnknownTaskTypeIsFatal(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	task := orderTask("task-weird", 1, 0)
	module.Store.PutTask(task)
	if _, err := module.Service.Accept(ctx, "dist-1", "task-weird"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Retire the plugin after acceptance to simulate a deregistered type.
	task.TypeID = "carrier_pigeon"
	module.Store.PutTask(task)

	placedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-1", "", 60, placedAt))
	if !errors.Is(err, domainerrors.ErrPluginNotFound) {
		t.Fatalf("ScoreOrder err = %v, want ErrPluginNotFound", err)
	}
}

func TestAcceptRejectsDuplicatesAndInactiveTasks(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	module.Store.PutTask(orderTask("task-1", 1, 0))
	if _, err := module.Service.Accept(ctx, "dist-1", "task-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := module.Service.Accept(ctx, "dist-1", "task-1"); !errors.Is(err, domainerrors.ErrAlreadyAccepted) {
		t.Fatalf("duplicate Accept err = %v, want ErrAlreadyAccepted", err)
	}

	inactive := orderTask("task-off", 1, 0)
	inactive.Active = false
	module.Store.PutTask(inactive)
	if _, err := module.Service.Accept(ctx, "dist-1", "task-off"); !errors.Is(err, domainerrors.ErrTaskInactive) {
		t.Fatalf("inactive Accept err = %v, want ErrTaskInactive", err)
	}
}

func TestAcceptNewcomerTasksSkipsAlreadyAccepted(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	newcomer := orderTask("task-new", 1, 0)
	newcomer.Newcomer = true
	module.Store.PutTask(newcomer)
	module.Store.PutTask(orderTask("task-plain", 1, 0))

	first, err := module.Service.AcceptNewcomerTasks(ctx, "dist-1")
	if err != nil {
		t.Fatalf("AcceptNewcomerTasks: %v", err)
	}
	if len(first) != 1 || first[0].TaskID != "task-new" {
		t.Fatalf("accepted = %+v, want only task-new", first)
	}

	second, err := module.Service.AcceptNewcomerTasks(ctx, "dist-1")
	if err != nil {
		t.Fatalf("AcceptNewcomerTasks repeat: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("repeat accepted = %+v, want none", second)
	}
}

func TestCompletionUpgradePromotesSenior(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	task := orderTask("task-upgrade", 1, 0)
	task.Upgrade = true
	task.Reward = money.Zero("CNY")
	module.Store.PutTask(task)
	if _, err := module.Service.Accept(ctx, "dist-1", "task-upgrade"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	placedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := module.Service.ScoreOrder(ctx, scoreInput("order-1", "dist-1", "", 60, placedAt)); err != nil {
		t.Fatalf("ScoreOrder: %v", err)
	}

	if promotions := module.Store.SeniorPromotions("dist-1"); promotions != 1 {
		t.Fatalf("senior promotions = %d, want 1", promotions)
	}
	if count := module.Store.TaskCommissionCount("dist-1"); count != 0 {
		t.Fatalf("zero reward still produced %d commissions", count)
	}
}
