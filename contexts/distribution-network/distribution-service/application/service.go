package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	commissionapp "arbor/contexts/distribution-network/commission-engine/application"
	commissionentities "arbor/contexts/distribution-network/commission-engine/domain/entities"
	commissionerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
	commissionports "arbor/contexts/distribution-network/commission-engine/ports"
	"arbor/contexts/distribution-network/distribution-service/ports"
	hierarchyapp "arbor/contexts/distribution-network/hierarchy-service/application"
	hierarchyentities "arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	hierarchyerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
	hierarchyports "arbor/contexts/distribution-network/hierarchy-service/ports"
	rewardapp "arbor/contexts/distribution-network/monthly-reward-service/application"
	rewardports "arbor/contexts/distribution-network/monthly-reward-service/ports"
	taskapp "arbor/contexts/distribution-network/task-achievement-service/application"
	taskports "arbor/contexts/distribution-network/task-achievement-service/ports"
)

// Service sequences one order through the whole distribution pipeline:
// resolve the owning distributor, freeze events, compute commissions, score
// task acceptances, feed the reward pool. Commissions for one order land
// atomically; the task and reward steps carry their own replay guards, so the
// pipeline as a whole can be retried.
type Service struct {
	Hierarchy  hierarchyapp.Service
	Commission commissionapp.Service
	Tasks      taskapp.Service
	Rewards    rewardapp.Service
	Logger     *slog.Logger
}

// HandleOrderPlaced runs the distribution pass for a freshly placed order.
// Orders with no resolvable owning distributor pass through undistributed.
func (s Service) HandleOrderPlaced(ctx context.Context, order ports.Order) error {
	logger := resolveLogger(s.Logger)
	if strings.TrimSpace(order.OrderID) == "" || strings.TrimSpace(order.CustomerID) == "" {
		return hierarchyerrors.ErrInvalidInput
	}

	owner, ok, err := s.resolveOwner(ctx, order)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("order has no owning distributor",
			"event", "order_not_distributed",
			"module", "distribution-network/distribution-service",
			"layer", "application",
			"order_id", order.OrderID,
		)
		return nil
	}

	index, err := s.Hierarchy.BuildIndex(ctx)
	if err != nil {
		// A broken hierarchy aborts before anything is written.
		return err
	}
	upstream, err := index.Upstream(owner.DistributorID, 0)
	if err != nil {
		return err
	}
	purchaser := toChainNode(owner)
	upstreamNodes := make([]commissionports.ChainNode, 0, len(upstream))
	for _, distributor := range upstream {
		upstreamNodes = append(upstreamNodes, toChainNode(distributor))
	}

	recorded, err := s.recordCommissionPass(ctx, order, owner, purchaser, upstreamNodes)
	if err != nil {
		return err
	}
	if !recorded {
		logger.Info("commission pass already recorded",
			"event", "distribution_pass_replayed",
			"module", "distribution-network/distribution-service",
			"layer", "application",
			"order_id", order.OrderID,
		)
	}

	upstreamID := ""
	if len(upstream) > 0 {
		upstreamID = upstream[0].DistributorID
	}
	if err := s.Tasks.ScoreOrder(ctx, taskports.OrderScoreInput{
		OrderID:               order.OrderID,
		DistributorID:         owner.DistributorID,
		UpstreamDistributorID: upstreamID,
		OrderTotal:            order.Total,
		PlacedAt:              order.PlacedAt,
	}); err != nil {
		return err
	}

	poolInput, err := s.buildPoolInput(ctx, order, owner)
	if err != nil {
		return err
	}
	return s.Rewards.HandleDistribution(ctx, poolInput)
}

// HandleOrderCancelled soft-voids everything the order produced: events,
// commissions and reward-pool postings all flip invalid in place.
func (s Service) HandleOrderCancelled(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return hierarchyerrors.ErrInvalidInput
	}
	if err := s.Commission.VoidOrder(ctx, orderID); err != nil {
		return err
	}
	if err := s.Rewards.VoidOrder(ctx, orderID); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("order distribution cancelled",
		"event", "order_distribution_cancelled",
		"module", "distribution-network/distribution-service",
		"layer", "application",
		"order_id", orderID,
	)
	return nil
}

// resolveOwner maps the purchasing customer to a distributor. An existing
// mapping wins; otherwise a promoted customer converts to a new distributor
// under the promoter and picks up the newcomer tasks. Customers with neither
// stay outside the network.
func (s Service) resolveOwner(ctx context.Context, order ports.Order) (hierarchyentities.Distributor, bool, error) {
	existing, err := s.Hierarchy.Repo.GetDistributorByUser(ctx, order.CustomerID)
	if err == nil {
		if !existing.Active {
			return hierarchyentities.Distributor{}, false, nil
		}
		return existing, true, nil
	}
	if !errors.Is(err, hierarchyerrors.ErrDistributorNotFound) {
		return hierarchyentities.Distributor{}, false, err
	}

	if strings.TrimSpace(order.PromoterID) == "" {
		return hierarchyentities.Distributor{}, false, nil
	}
	promoter, err := s.Hierarchy.Repo.GetDistributor(ctx, order.PromoterID)
	if err != nil {
		return hierarchyentities.Distributor{}, false, err
	}
	if !promoter.Active {
		return hierarchyentities.Distributor{}, false, nil
	}

	converted, err := s.Hierarchy.RegisterDistributor(ctx, hierarchyports.RegisterDistributorInput{
		UserID:     order.CustomerID,
		UpstreamID: promoter.DistributorID,
	})
	if err != nil {
		return hierarchyentities.Distributor{}, false, err
	}
	if _, err := s.Tasks.AcceptNewcomerTasks(ctx, converted.DistributorID); err != nil {
		return hierarchyentities.Distributor{}, false, err
	}
	resolveLogger(s.Logger).Info("customer converted to distributor",
		"event", "customer_converted",
		"module", "distribution-network/distribution-service",
		"layer", "application",
		"distributor_id", converted.DistributorID,
		"promoter_id", promoter.DistributorID,
	)
	return converted, true, nil
}

// recordCommissionPass builds and atomically saves the order's events and
// sale-driven commissions. Returns false when the order was already recorded.
func (s Service) recordCommissionPass(
	ctx context.Context,
	order ports.Order,
	owner hierarchyentities.Distributor,
	purchaser commissionports.ChainNode,
	upstreamNodes []commissionports.ChainNode,
) (bool, error) {
	existing, err := s.Commission.Repo.ListEventsByOrder(ctx, order.OrderID)
	if err != nil {
		return false, err
	}
	for _, event := range existing {
		if event.Valid {
			return false, nil
		}
	}

	events := make([]commissionentities.Event, 0, len(order.Items))
	commissions := make([]commissionentities.Commission, 0)
	for _, item := range order.Items {
		target, err := s.Commission.Repo.GetTargetByPurchasable(ctx, item.PurchasableID)
		if errors.Is(err, commissionerrors.ErrTargetNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if !target.Active {
			continue
		}

		event, err := s.Commission.BuildEvent(ctx, order.OrderID, item.OrderItemID, owner.DistributorID, target, item.UnitPrice, owner.IsSenior)
		if err != nil {
			return false, err
		}
		events = append(events, event)

		chain, err := s.Commission.ChainCommissions(ctx, event, target, purchaser, upstreamNodes)
		if err != nil {
			return false, err
		}
		commissions = append(commissions, chain...)

		promotion, err := s.Commission.PromotionCommission(ctx, event, purchaser)
		if err != nil {
			return false, err
		}
		if promotion != nil {
			commissions = append(commissions, *promotion)
		}

		leaders, err := s.Commission.LeaderCommissions(ctx, event, upstreamNodes)
		if err != nil {
			return false, err
		}
		commissions = append(commissions, leaders...)
	}
	if len(events) == 0 {
		return true, nil
	}

	if err := s.Commission.RecordPass(ctx, events, commissions); err != nil {
		if errors.Is(err, commissionerrors.ErrPassExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s Service) buildPoolInput(ctx context.Context, order ports.Order, owner hierarchyentities.Distributor) (rewardports.PoolOrderInput, error) {
	input := rewardports.PoolOrderInput{
		OrderID:       order.OrderID,
		DistributorID: owner.DistributorID,
		OrderTotal:    order.Total,
		PlacedAt:      order.PlacedAt,
		Items:         make([]rewardports.PoolItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		poolItem := rewardports.PoolItem{
			OrderItemID:   item.OrderItemID,
			PurchasableID: item.PurchasableID,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
		}
		target, err := s.Commission.Repo.GetTargetByPurchasable(ctx, item.PurchasableID)
		if err == nil && target.Active {
			poolItem.HasTarget = true
			poolItem.PercentageReward = target.PercentageReward
			poolItem.AmountReward = target.AmountReward
		} else if err != nil && !errors.Is(err, commissionerrors.ErrTargetNotFound) {
			return rewardports.PoolOrderInput{}, err
		}
		input.Items = append(input.Items, poolItem)
	}
	return input, nil
}

func toChainNode(distributor hierarchyentities.Distributor) commissionports.ChainNode {
	return commissionports.ChainNode{
		DistributorID: distributor.DistributorID,
		IsSenior:      distributor.IsSenior,
		IsLeader:      distributor.IsLeader,
		Active:        distributor.Active,
	}
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
