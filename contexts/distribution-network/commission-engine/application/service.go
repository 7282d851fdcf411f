package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	domainerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
	domainservices "arbor/contexts/distribution-network/commission-engine/domain/services"
	"arbor/contexts/distribution-network/commission-engine/ports"
	"arbor/internal/shared/money"
)

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Types  *domainservices.CommissionTypeRegistry
	Logger *slog.Logger

	Mode                       ports.ComputeMode
	EnableSeniorDistributor    bool
	EnableSelfCommission       bool
	SelfOccupiesFirstLevel     bool
	EnableSelfCommissionOffset bool
	GroupLeaderPercentage      decimal.Decimal
	GroupQuantityLimit         int
	ChainLevelLimit            int
}

// ComputeCommissionAmount resolves the frozen commission base for one type
// from the target configuration and the captured unit price. In fixed mode
// the target's fixed field is returned directly; in percentage mode the base
// is price x percentage/100, with the senior override table applied when the
// senior-distributor feature is on.
func (s Service) ComputeCommissionAmount(
	target entities.Target,
	kind entities.CommissionType,
	unitPrice money.Money,
	useSeniorBase bool,
) (money.Money, error) {
	switch s.Mode {
	case ports.ComputeModeFixedAmount:
		switch kind {
		case entities.CommissionTypePromotion:
			return target.AmountPromotion, nil
		case entities.CommissionTypeChain:
			return target.AmountChain, nil
		case entities.CommissionTypeLeader:
			return target.AmountLeader, nil
		}
		return money.Money{}, domainerrors.ErrInvalidInput
	case ports.ComputeModeDynamicPercentage:
		percentage, err := s.resolvePercentage(target, kind, useSeniorBase)
		if err != nil {
			return money.Money{}, err
		}
		return unitPrice.MulPercent(percentage), nil
	default:
		return money.Money{}, domainerrors.ErrUnknownComputeMode
	}
}

func (s Service) resolvePercentage(target entities.Target, kind entities.CommissionType, useSeniorBase bool) (decimal.Decimal, error) {
	senior := useSeniorBase && s.EnableSeniorDistributor
	switch kind {
	case entities.CommissionTypePromotion:
		if senior && target.PercentagePromotionSenior != nil {
			return *target.PercentagePromotionSenior, nil
		}
		return target.PercentagePromotion, nil
	case entities.CommissionTypeChain:
		if senior && target.PercentageChainSenior != nil {
			return *target.PercentageChainSenior, nil
		}
		return target.PercentageChain, nil
	case entities.CommissionTypeLeader:
		if senior && target.PercentageLeaderSenior != nil {
			return *target.PercentageLeaderSenior, nil
		}
		return target.PercentageLeader, nil
	}
	return decimal.Decimal{}, domainerrors.ErrInvalidInput
}

// BuildEvent freezes the three commission bases for one order item at sale
// time. Everything downstream reads the frozen bases, never live target
// configuration.
func (s Service) BuildEvent(
	ctx context.Context,
	orderID string,
	orderItemID string,
	distributorID string,
	target entities.Target,
	unitPrice money.Money,
	useSeniorBase bool,
) (entities.Event, error) {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(distributorID) == "" {
		return entities.Event{}, domainerrors.ErrInvalidInput
	}

	promotion, err := s.ComputeCommissionAmount(target, entities.CommissionTypePromotion, unitPrice, useSeniorBase)
	if err != nil {
		return entities.Event{}, err
	}
	chain, err := s.ComputeCommissionAmount(target, entities.CommissionTypeChain, unitPrice, useSeniorBase)
	if err != nil {
		return entities.Event{}, err
	}
	leader, err := s.ComputeCommissionAmount(target, entities.CommissionTypeLeader, unitPrice, useSeniorBase)
	if err != nil {
		return entities.Event{}, err
	}

	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Event{}, err
	}
	return entities.Event{
		EventID:         eventID,
		OrderID:         strings.TrimSpace(orderID),
		OrderItemID:     strings.TrimSpace(orderItemID),
		DistributorID:   strings.TrimSpace(distributorID),
		TargetID:        target.TargetID,
		Amount:          unitPrice,
		AmountPromotion: promotion,
		AmountChain:     chain,
		AmountLeader:    leader,
		Valid:           true,
		CreatedAt:       s.now(),
	}, nil
}

// ChainCommissions walks the upstream chain and produces one commission per
// paid hop. The walk stops at the first undefined or inactive level row:
// chain payouts never skip levels. When self commission is on, the purchaser
// is paid first; whether they consume the level-1 slot is an explicit policy
// switch, not something inferred per call.
func (s Service) ChainCommissions(
	ctx context.Context,
	event entities.Event,
	target entities.Target,
	purchaser ports.ChainNode,
	upstream []ports.ChainNode,
) ([]entities.Commission, error) {
	commissions := make([]entities.Commission, 0)
	levelNumber := 1

	if s.EnableSelfCommission && !s.EnableSelfCommissionOffset {
		level, ok, err := s.Repo.GetLevel(ctx, target.TargetID, levelNumber)
		if err != nil {
			return nil, err
		}
		if !ok || !level.Active {
			return commissions, nil
		}
		amount := event.AmountChain.MulPercent(level.Percentage)
		if amount.IsPositive() && purchaser.Active {
			commission, err := s.newCommission(ctx, entities.CommissionTypeChain, purchaser.DistributorID, amount, event.EventID)
			if err != nil {
				return nil, err
			}
			commission.LevelNumber = levelNumber
			commissions = append(commissions, commission)
		}
		if s.SelfOccupiesFirstLevel {
			levelNumber++
		}
	}

	hops := upstream
	if s.ChainLevelLimit > 0 && len(hops) > s.ChainLevelLimit {
		hops = hops[:s.ChainLevelLimit]
	}
	for _, hop := range hops {
		level, ok, err := s.Repo.GetLevel(ctx, target.TargetID, levelNumber)
		if err != nil {
			return nil, err
		}
		if !ok || !level.Active {
			// No distributor beyond this point is paid for this sale.
			break
		}
		amount := event.AmountChain.MulPercent(level.Percentage)
		if amount.IsPositive() && hop.Active {
			commission, err := s.newCommission(ctx, entities.CommissionTypeChain, hop.DistributorID, amount, event.EventID)
			if err != nil {
				return nil, err
			}
			commission.LevelNumber = levelNumber
			commissions = append(commissions, commission)
		}
		levelNumber++
	}
	return commissions, nil
}

// PromotionCommission pays only the determining distributor; no chain walk.
func (s Service) PromotionCommission(
	ctx context.Context,
	event entities.Event,
	purchaser ports.ChainNode,
) (*entities.Commission, error) {
	if !event.AmountPromotion.IsPositive() || !purchaser.Active {
		return nil, nil
	}
	commission, err := s.newCommission(ctx, entities.CommissionTypePromotion, purchaser.DistributorID, event.AmountPromotion, event.EventID)
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// LeaderCommissions pays the nearest active leader found walking upstream.
// At most one primary leader payout per sale; when a second leader sits
// further up and the group-leader cut is configured, that leader receives a
// secondary payout capped by the group slot limit.
func (s Service) LeaderCommissions(
	ctx context.Context,
	event entities.Event,
	upstream []ports.ChainNode,
) ([]entities.Commission, error) {
	if !event.AmountLeader.IsPositive() {
		return nil, nil
	}

	commissions := make([]entities.Commission, 0, 2)
	primaryIdx := -1
	for i, hop := range upstream {
		if hop.IsLeader && hop.Active {
			primaryIdx = i
			break
		}
	}
	if primaryIdx < 0 {
		return nil, nil
	}

	primary := upstream[primaryIdx]
	commission, err := s.newCommission(ctx, entities.CommissionTypeLeader, primary.DistributorID, event.AmountLeader, event.EventID)
	if err != nil {
		return nil, err
	}
	commissions = append(commissions, commission)

	if s.GroupLeaderPercentage.IsPositive() {
		for _, hop := range upstream[primaryIdx+1:] {
			if !hop.IsLeader || !hop.Active {
				continue
			}
			used, err := s.Repo.CountValidGroupCuts(ctx, hop.DistributorID)
			if err != nil {
				return nil, err
			}
			if s.GroupQuantityLimit > 0 && used >= s.GroupQuantityLimit {
				break
			}
			amount := event.AmountLeader.MulPercent(s.GroupLeaderPercentage)
			if !amount.IsPositive() {
				break
			}
			cut, err := s.newCommission(ctx, entities.CommissionTypeLeader, hop.DistributorID, amount, event.EventID)
			if err != nil {
				return nil, err
			}
			cut.GroupLeaderFor = primary.DistributorID
			commissions = append(commissions, cut)
			break
		}
	}
	return commissions, nil
}

// ComputePriceAdjustment returns the per-item price reduction: the target's
// amount-off plus, when the self-offset feature is on, the purchaser's own
// level-1 chain amount. The total is capped so the price never goes below
// zero; a currency mismatch skips the adjustment instead of failing the item.
func (s Service) ComputePriceAdjustment(
	ctx context.Context,
	target entities.Target,
	unitPrice money.Money,
	chainBase money.Money,
) (ports.PriceAdjustment, error) {
	total := money.Zero(unitPrice.Currency)

	if target.AmountOff.IsPositive() {
		if !target.AmountOff.SameCurrency(unitPrice) {
			resolveLogger(s.Logger).Warn("amount-off skipped for currency mismatch",
				"event", "price_adjustment_skipped",
				"module", "distribution-network/commission-engine",
				"layer", "application",
				"target_id", target.TargetID,
				"target_currency", target.AmountOff.Currency,
				"price_currency", unitPrice.Currency,
			)
			return ports.PriceAdjustment{Skipped: true}, nil
		}
		sum, err := total.Add(target.AmountOff)
		if err != nil {
			return ports.PriceAdjustment{}, err
		}
		total = sum
	}

	if s.EnableSelfCommission && s.EnableSelfCommissionOffset {
		level, ok, err := s.Repo.GetLevel(ctx, target.TargetID, 1)
		if err != nil {
			return ports.PriceAdjustment{}, err
		}
		if ok && level.Active {
			offset := chainBase.MulPercent(level.Percentage)
			if offset.IsPositive() {
				if !offset.SameCurrency(unitPrice) {
					return ports.PriceAdjustment{Skipped: true}, nil
				}
				sum, err := total.Add(offset)
				if err != nil {
					return ports.PriceAdjustment{}, err
				}
				total = sum
			}
		}
	}

	if cmp, err := total.Cmp(unitPrice); err == nil && cmp > 0 {
		total = unitPrice
	}
	return ports.PriceAdjustment{Amount: total}, nil
}

// RecordPass validates every commission against the type registry and saves
// the order's events and commissions in one atomic write.
func (s Service) RecordPass(ctx context.Context, events []entities.Event, commissions []entities.Commission) error {
	for _, commission := range commissions {
		spec, err := s.Types.Resolve(commission.Type)
		if err != nil {
			return err
		}
		if err := spec.Validate(commission); err != nil {
			return err
		}
	}
	if err := s.Repo.SavePass(ctx, events, commissions); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("distribution pass recorded",
		"event", "distribution_pass_recorded",
		"module", "distribution-network/commission-engine",
		"layer", "application",
		"events", len(events),
		"commissions", len(commissions),
	)
	return nil
}

// VoidOrder soft-voids all of an order's events and their commissions.
func (s Service) VoidOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return domainerrors.ErrInvalidInput
	}
	if err := s.Repo.VoidByOrder(ctx, strings.TrimSpace(orderID)); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("order distribution voided",
		"event", "order_distribution_voided",
		"module", "distribution-network/commission-engine",
		"layer", "application",
		"order_id", strings.TrimSpace(orderID),
	)
	return nil
}

func (s Service) ListCommissions(ctx context.Context, filter ports.CommissionFilter) ([]entities.Commission, error) {
	return s.Repo.ListCommissions(ctx, filter)
}

// AppendTaskCommission writes the one-time task completion payout.
func (s Service) AppendTaskCommission(ctx context.Context, distributorID string, amount money.Money, acceptanceID string) error {
	commission, err := s.newCommission(ctx, entities.CommissionTypeTask, distributorID, amount, "")
	if err != nil {
		return err
	}
	commission.AcceptanceID = acceptanceID
	return s.appendValidated(ctx, commission)
}

// AppendRewardCommission writes one monthly reward assignment against its
// statement.
func (s Service) AppendRewardCommission(ctx context.Context, distributorID string, amount money.Money, statementID string) error {
	commission, err := s.newCommission(ctx, entities.CommissionTypeReward, distributorID, amount, "")
	if err != nil {
		return err
	}
	commission.StatementID = statementID
	return s.appendValidated(ctx, commission)
}

// HasRewardCommission reports whether a statement already paid a distributor,
// which is what lets an interrupted monthly close resume.
func (s Service) HasRewardCommission(ctx context.Context, statementID string, distributorID string) (bool, error) {
	commissions, err := s.Repo.ListCommissions(ctx, ports.CommissionFilter{
		DistributorID: distributorID,
		Type:          entities.CommissionTypeReward,
		ValidOnly:     true,
	})
	if err != nil {
		return false, err
	}
	for _, commission := range commissions {
		if commission.StatementID == statementID {
			return true, nil
		}
	}
	return false, nil
}

func (s Service) appendValidated(ctx context.Context, commission entities.Commission) error {
	spec, err := s.Types.Resolve(commission.Type)
	if err != nil {
		return err
	}
	if err := spec.Validate(commission); err != nil {
		return err
	}
	return s.Repo.AppendCommission(ctx, commission)
}

func (s Service) newCommission(
	ctx context.Context,
	kind entities.CommissionType,
	distributorID string,
	amount money.Money,
	eventID string,
) (entities.Commission, error) {
	commissionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Commission{}, err
	}
	return entities.Commission{
		CommissionID:  commissionID,
		Type:          kind,
		DistributorID: distributorID,
		Amount:        amount,
		Valid:         true,
		EventID:       eventID,
		CreatedAt:     s.now(),
	}, nil
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
