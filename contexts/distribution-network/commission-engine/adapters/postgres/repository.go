package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	domainerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
	"arbor/contexts/distribution-network/commission-engine/ports"
	"arbor/internal/shared/money"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&targetModel{}, &levelModel{}, &eventModel{}, &commissionModel{})
}

func (r *Repository) GetTargetByPurchasable(ctx context.Context, purchasableID string) (entities.Target, error) {
	var row targetModel
	err := r.db.WithContext(ctx).
		Where("purchasable_id = ?", strings.TrimSpace(purchasableID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Target{}, domainerrors.ErrTargetNotFound
		}
		return entities.Target{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetLevel(ctx context.Context, targetID string, levelNumber int) (entities.Level, bool, error) {
	var row levelModel
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND level_number = ?", strings.TrimSpace(targetID), levelNumber).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Level{}, false, nil
		}
		return entities.Level{}, false, err
	}
	return row.toEntity(), true, nil
}

// SavePass writes the order's events and commissions inside one transaction
// so a failed pass leaves nothing behind.
func (r *Repository) SavePass(ctx context.Context, events []entities.Event, commissions []entities.Commission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			row := eventModelFromEntity(event)
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrPassExists
				}
				return err
			}
		}
		for _, commission := range commissions {
			row := commissionModelFromEntity(commission)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) AppendCommission(ctx context.Context, commission entities.Commission) error {
	row := commissionModelFromEntity(commission)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListEventsByOrder(ctx context.Context, orderID string) ([]entities.Event, error) {
	var rows []eventModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Order("event_id").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListCommissions(ctx context.Context, filter ports.CommissionFilter) ([]entities.Commission, error) {
	tx := r.db.WithContext(ctx).Model(&commissionModel{})
	if filter.DistributorID != "" {
		tx = tx.Where("distributor_id = ?", filter.DistributorID)
	}
	if filter.Type != "" {
		tx = tx.Where("type = ?", string(filter.Type))
	}
	if !filter.From.IsZero() {
		tx = tx.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		tx = tx.Where("created_at <= ?", filter.To)
	}
	if filter.ValidOnly {
		tx = tx.Where("valid = TRUE")
	}

	var rows []commissionModel
	if err := tx.Order("created_at, commission_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Commission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CountValidGroupCuts(ctx context.Context, distributorID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("distributor_id = ? AND valid = TRUE AND group_leader_for <> ''", strings.TrimSpace(distributorID)).
		Count(&count).
		Error
	return int(count), err
}

func (r *Repository) VoidByOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&eventModel{}).
			Where("order_id = ?", orderID).
			Update("valid", false).
			Error; err != nil {
			return err
		}
		return tx.Model(&commissionModel{}).
			Where("event_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Model(&eventModel{}).
				Select("event_id").
				Where("order_id = ?", orderID)).
			Update("valid", false).
			Error
	})
}

type targetModel struct {
	TargetID      string `gorm:"column:target_id;primaryKey"`
	PurchasableID string `gorm:"column:purchasable_id;uniqueIndex"`
	Currency      string `gorm:"column:currency"`
	Active        bool   `gorm:"column:active"`

	AmountOff decimal.Decimal `gorm:"column:amount_off;type:numeric(12,2)"`

	PercentagePromotion decimal.Decimal `gorm:"column:percentage_promotion;type:numeric(5,2)"`
	PercentageChain     decimal.Decimal `gorm:"column:percentage_chain;type:numeric(5,2)"`
	PercentageLeader    decimal.Decimal `gorm:"column:percentage_leader;type:numeric(5,2)"`
	PercentageReward    decimal.Decimal `gorm:"column:percentage_reward;type:numeric(5,2)"`

	PercentagePromotionSenior *decimal.Decimal `gorm:"column:percentage_promotion_senior;type:numeric(5,2)"`
	PercentageChainSenior     *decimal.Decimal `gorm:"column:percentage_chain_senior;type:numeric(5,2)"`
	PercentageLeaderSenior    *decimal.Decimal `gorm:"column:percentage_leader_senior;type:numeric(5,2)"`

	AmountPromotion decimal.Decimal `gorm:"column:amount_promotion;type:numeric(12,2)"`
	AmountChain     decimal.Decimal `gorm:"column:amount_chain;type:numeric(12,2)"`
	AmountLeader    decimal.Decimal `gorm:"column:amount_leader;type:numeric(12,2)"`
	AmountReward    decimal.Decimal `gorm:"column:amount_reward;type:numeric(12,2)"`
}

func (targetModel) TableName() string { return "distribution_targets" }

func (m targetModel) toEntity() entities.Target {
	return entities.Target{
		TargetID:      m.TargetID,
		PurchasableID: m.PurchasableID,
		Currency:      m.Currency,
		Active:        m.Active,

		AmountOff: money.New(m.AmountOff, m.Currency),

		PercentagePromotion: m.PercentagePromotion,
		PercentageChain:     m.PercentageChain,
		PercentageLeader:    m.PercentageLeader,
		PercentageReward:    m.PercentageReward,

		PercentagePromotionSenior: m.PercentagePromotionSenior,
		PercentageChainSenior:     m.PercentageChainSenior,
		PercentageLeaderSenior:    m.PercentageLeaderSenior,

		AmountPromotion: money.New(m.AmountPromotion, m.Currency),
		AmountChain:     money.New(m.AmountChain, m.Currency),
		AmountLeader:    money.New(m.AmountLeader, m.Currency),
		AmountReward:    money.New(m.AmountReward, m.Currency),
	}
}

type levelModel struct {
	TargetID    string          `gorm:"column:target_id;primaryKey"`
	LevelNumber int             `gorm:"column:level_number;primaryKey"`
	Percentage  decimal.Decimal `gorm:"column:percentage;type:numeric(5,2)"`
	Active      bool            `gorm:"column:active"`
}

func (levelModel) TableName() string { return "distribution_levels" }

func (m levelModel) toEntity() entities.Level {
	return entities.Level{
		TargetID:    m.TargetID,
		LevelNumber: m.LevelNumber,
		Percentage:  m.Percentage,
		Active:      m.Active,
	}
}

type eventModel struct {
	EventID       string `gorm:"column:event_id;primaryKey"`
	OrderID       string `gorm:"column:order_id;index"`
	OrderItemID   string `gorm:"column:order_item_id;uniqueIndex"`
	DistributorID string `gorm:"column:distributor_id;index"`
	TargetID      string `gorm:"column:target_id"`

	Currency        string          `gorm:"column:currency"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	AmountPromotion decimal.Decimal `gorm:"column:amount_promotion;type:numeric(12,2)"`
	AmountChain     decimal.Decimal `gorm:"column:amount_chain;type:numeric(12,2)"`
	AmountLeader    decimal.Decimal `gorm:"column:amount_leader;type:numeric(12,2)"`

	Valid     bool      `gorm:"column:valid"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string { return "distribution_events" }

func (m eventModel) toEntity() entities.Event {
	return entities.Event{
		EventID:         m.EventID,
		OrderID:         m.OrderID,
		OrderItemID:     m.OrderItemID,
		DistributorID:   m.DistributorID,
		TargetID:        m.TargetID,
		Amount:          money.New(m.Amount, m.Currency),
		AmountPromotion: money.New(m.AmountPromotion, m.Currency),
		AmountChain:     money.New(m.AmountChain, m.Currency),
		AmountLeader:    money.New(m.AmountLeader, m.Currency),
		Valid:           m.Valid,
		CreatedAt:       m.CreatedAt,
	}
}

func eventModelFromEntity(e entities.Event) eventModel {
	return eventModel{
		EventID:         strings.TrimSpace(e.EventID),
		OrderID:         strings.TrimSpace(e.OrderID),
		OrderItemID:     strings.TrimSpace(e.OrderItemID),
		DistributorID:   strings.TrimSpace(e.DistributorID),
		TargetID:        strings.TrimSpace(e.TargetID),
		Currency:        e.Amount.Currency,
		Amount:          e.Amount.Amount,
		AmountPromotion: e.AmountPromotion.Amount,
		AmountChain:     e.AmountChain.Amount,
		AmountLeader:    e.AmountLeader.Amount,
		Valid:           e.Valid,
		CreatedAt:       e.CreatedAt,
	}
}

type commissionModel struct {
	CommissionID  string `gorm:"column:commission_id;primaryKey"`
	Type          string `gorm:"column:type;index"`
	DistributorID string `gorm:"column:distributor_id;index"`

	Currency string          `gorm:"column:currency"`
	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	Valid    bool            `gorm:"column:valid"`

	EventID      string `gorm:"column:event_id;index"`
	AcceptanceID string `gorm:"column:acceptance_id;index"`
	StatementID  string `gorm:"column:statement_id;index"`

	LevelNumber    int    `gorm:"column:level_number"`
	GroupLeaderFor string `gorm:"column:group_leader_for"`

	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (commissionModel) TableName() string { return "distribution_commissions" }

func (m commissionModel) toEntity() entities.Commission {
	return entities.Commission{
		CommissionID:   m.CommissionID,
		Type:           entities.CommissionType(m.Type),
		DistributorID:  m.DistributorID,
		Amount:         money.New(m.Amount, m.Currency),
		Valid:          m.Valid,
		EventID:        m.EventID,
		AcceptanceID:   m.AcceptanceID,
		StatementID:    m.StatementID,
		LevelNumber:    m.LevelNumber,
		GroupLeaderFor: m.GroupLeaderFor,
		CreatedAt:      m.CreatedAt,
	}
}

func commissionModelFromEntity(c entities.Commission) commissionModel {
	return commissionModel{
		CommissionID:   strings.TrimSpace(c.CommissionID),
		Type:           string(c.Type),
		DistributorID:  strings.TrimSpace(c.DistributorID),
		Currency:       c.Amount.Currency,
		Amount:         c.Amount.Amount,
		Valid:          c.Valid,
		EventID:        strings.TrimSpace(c.EventID),
		AcceptanceID:   strings.TrimSpace(c.AcceptanceID),
		StatementID:    strings.TrimSpace(c.StatementID),
		LevelNumber:    c.LevelNumber,
		GroupLeaderFor: strings.TrimSpace(c.GroupLeaderFor),
		CreatedAt:      c.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
