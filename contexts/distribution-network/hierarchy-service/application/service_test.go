package application_test

import (
	"context"
	"errors"
	"testing"

	hierarchyservice "arbor/contexts/distribution-network/hierarchy-service"
	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
	domainservices "arbor/contexts/distribution-network/hierarchy-service/domain/services"
	"arbor/contexts/distribution-network/hierarchy-service/ports"
	"arbor/internal/shared/events"
)

func seedChain(t *testing.T, module hierarchyservice.Module, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for i, id := range ids {
		distributor := entities.Distributor{
			DistributorID: id,
			UserID:        "user-" + id,
			LevelNumber:   i + 1,
			Active:        true,
		}
		if i > 0 {
			upstream := ids[i-1]
			distributor.UpstreamID = &upstream
		}
		if err := module.Store.CreateDistributor(ctx, distributor); err != nil {
			t.Fatalf("seed distributor %s failed: %v", id, err)
		}
	}
}

func approveLeader(t *testing.T, module hierarchyservice.Module, distributorID string) {
	t.Helper()
	err := module.Store.CreateLeader(context.Background(), entities.Leader{
		LeaderID:      "leader-" + distributorID,
		DistributorID: distributorID,
		Status:        entities.LeaderStatusApproved,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("seed leader for %s failed: %v", distributorID, err)
	}
}

func TestUpstreamWalkNearestFirstWithBound(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "a", "b", "c", "d")

	index, err := module.Service.BuildIndex(context.Background())
	if err != nil {
		t.Fatalf("build index failed: %v", err)
	}

	chain, err := index.Upstream("d", 0)
	if err != nil {
		t.Fatalf("upstream walk failed: %v", err)
	}
	if len(chain) != 3 || chain[0].DistributorID != "c" || chain[2].DistributorID != "a" {
		t.Fatalf("unexpected chain order: %+v", chain)
	}

	bounded, err := index.Upstream("d", 2)
	if err != nil {
		t.Fatalf("bounded walk failed: %v", err)
	}
	if len(bounded) != 2 || bounded[1].DistributorID != "b" {
		t.Fatalf("unexpected bounded chain: %+v", bounded)
	}
}

func TestDownstreamWalkBreadthFirst(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	ctx := context.Background()
	root := "root"
	mk := func(id string, upstream string, level int) {
		d := entities.Distributor{DistributorID: id, UserID: "user-" + id, LevelNumber: level, Active: true}
		if upstream != "" {
			d.UpstreamID = &upstream
		}
		if err := module.Store.CreateDistributor(ctx, d); err != nil {
			t.Fatalf("seed %s failed: %v", id, err)
		}
	}
	mk(root, "", 1)
	mk("c1", root, 2)
	mk("c2", root, 2)
	mk("g1", "c1", 3)

	index, err := module.Service.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("build index failed: %v", err)
	}

	all := index.Downstream(root, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 downstream nodes, got %d", len(all))
	}
	oneLevel := index.Downstream(root, 1)
	if len(oneLevel) != 2 {
		t.Fatalf("expected 2 direct children, got %d", len(oneLevel))
	}
}

func TestUpstreamWalkDetectsCycle(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	ctx := context.Background()

	b := "b"
	a := "a"
	if err := module.Store.CreateDistributor(ctx, entities.Distributor{
		DistributorID: "a", UserID: "user-a", UpstreamID: &b, LevelNumber: 1, Active: true,
	}); err != nil {
		t.Fatalf("seed a failed: %v", err)
	}
	if err := module.Store.CreateDistributor(ctx, entities.Distributor{
		DistributorID: "b", UserID: "user-b", UpstreamID: &a, LevelNumber: 2, Active: true,
	}); err != nil {
		t.Fatalf("seed b failed: %v", err)
	}

	index, err := module.Service.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("build index failed: %v", err)
	}
	if _, err := index.Upstream("a", 0); !errors.Is(err, domainerrors.ErrHierarchyCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidatePromotionRejectsActiveDownstreamLeader(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "top", "mid", "bottom")
	approveLeader(t, module, "bottom")

	violation, err := module.Service.ValidatePromotion(context.Background(), "top")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if violation == nil || violation.Code != domainservices.ViolationDownstreamLimitation {
		t.Fatalf("expected downstream limitation, got %+v", violation)
	}
}

func TestValidatePromotionAcceptsSingleUpstreamLeader(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "top", "mid", "bottom")
	approveLeader(t, module, "top")

	violation, err := module.Service.ValidatePromotion(context.Background(), "bottom")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if violation != nil {
		t.Fatalf("expected acceptance with one upstream leader, got %+v", violation)
	}
}

func TestValidatePromotionRejectsTwoUpstreamLeaders(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "top", "mid", "bottom")
	approveLeader(t, module, "top")
	approveLeader(t, module, "mid")

	violation, err := module.Service.ValidatePromotion(context.Background(), "bottom")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if violation == nil || violation.Code != domainservices.ViolationUpstreamLimitation {
		t.Fatalf("expected upstream limitation, got %+v", violation)
	}
}

func TestValidatePromotionIgnoresPendingAndInactiveLeaders(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "top", "mid", "bottom")
	ctx := context.Background()

	if err := module.Store.CreateLeader(ctx, entities.Leader{
		LeaderID: "l1", DistributorID: "top", Status: entities.LeaderStatusPending, Active: true,
	}); err != nil {
		t.Fatalf("seed pending leader failed: %v", err)
	}
	if err := module.Store.CreateLeader(ctx, entities.Leader{
		LeaderID: "l2", DistributorID: "mid", Status: entities.LeaderStatusApproved, Active: false,
	}); err != nil {
		t.Fatalf("seed inactive leader failed: %v", err)
	}

	violation, err := module.Service.ValidatePromotion(ctx, "bottom")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if violation != nil {
		t.Fatalf("pending/inactive leaders must not count, got %+v", violation)
	}
}

func TestPromoteLeaderPersistsRoleAndNotifies(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "top", "mid", "bottom")
	ctx := context.Background()

	leader, violation, err := module.Service.PromoteLeader(ctx, "mid")
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if violation != nil {
		t.Fatalf("unexpected violation: %+v", violation)
	}
	if !leader.CountsAsLeader() {
		t.Fatalf("expected approved active leader, got %+v", leader)
	}

	promoted, err := module.Store.GetDistributor(ctx, "mid")
	if err != nil {
		t.Fatalf("get distributor failed: %v", err)
	}
	if !promoted.IsLeader {
		t.Fatalf("expected IsLeader flag after promotion")
	}

	found := false
	for _, envelope := range module.Store.ListOutbox() {
		if envelope.EventType == events.TypeDistributorPromotedLeader && envelope.EntityID == "mid" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected promoted_leader notification in outbox")
	}
}

func TestPromoteSeniorIsIdempotent(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "solo")
	ctx := context.Background()

	first, err := module.Service.PromoteSenior(ctx, "solo")
	if err != nil {
		t.Fatalf("promote senior failed: %v", err)
	}
	if !first.IsSenior {
		t.Fatalf("expected senior flag set")
	}
	if _, err := module.Service.PromoteSenior(ctx, "solo"); err != nil {
		t.Fatalf("second promote failed: %v", err)
	}

	notices := 0
	for _, envelope := range module.Store.ListOutbox() {
		if envelope.EventType == events.TypeDistributorPromotedSenior {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("expected exactly one senior notification, got %d", notices)
	}
}

func TestReparentRecomputesSubtreeLevels(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "a", "b", "c")
	ctx := context.Background()

	if err := module.Store.CreateDistributor(ctx, entities.Distributor{
		DistributorID: "root2", UserID: "user-root2", LevelNumber: 1, Active: true,
	}); err != nil {
		t.Fatalf("seed root2 failed: %v", err)
	}

	if err := module.Service.Reparent(ctx, "b", "root2"); err != nil {
		t.Fatalf("reparent failed: %v", err)
	}

	b, _ := module.Store.GetDistributor(ctx, "b")
	c, _ := module.Store.GetDistributor(ctx, "c")
	if b.LevelNumber != 2 || b.Upstream() != "root2" {
		t.Fatalf("unexpected b after reparent: %+v", b)
	}
	if c.LevelNumber != 3 {
		t.Fatalf("expected c shifted with subtree, got level %d", c.LevelNumber)
	}
}

func TestReparentRejectsMoveUnderOwnSubtree(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	seedChain(t, module, "a", "b", "c")

	err := module.Service.Reparent(context.Background(), "a", "c")
	if !errors.Is(err, domainerrors.ErrHierarchyCycle) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
}

func TestRegisterDistributorAssignsLevels(t *testing.T) {
	module := hierarchyservice.NewInMemoryModule(nil)
	ctx := context.Background()

	root, err := module.Service.RegisterDistributor(ctx, registerInput("user-1", ""))
	if err != nil {
		t.Fatalf("register root failed: %v", err)
	}
	if root.LevelNumber != 1 {
		t.Fatalf("expected root level 1, got %d", root.LevelNumber)
	}

	child, err := module.Service.RegisterDistributor(ctx, registerInput("user-2", root.DistributorID))
	if err != nil {
		t.Fatalf("register child failed: %v", err)
	}
	if child.LevelNumber != 2 || child.Upstream() != root.DistributorID {
		t.Fatalf("unexpected child: %+v", child)
	}

	if _, err := module.Service.RegisterDistributor(ctx, registerInput("user-1", "")); !errors.Is(err, domainerrors.ErrDistributorExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func registerInput(userID string, upstreamID string) ports.RegisterDistributorInput {
	return ports.RegisterDistributorInput{UserID: userID, UpstreamID: upstreamID}
}
