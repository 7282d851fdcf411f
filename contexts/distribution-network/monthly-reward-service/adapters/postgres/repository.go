package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arbor/contexts/distribution-network/monthly-reward-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/monthly-reward-service/domain/errors"
	"arbor/internal/shared/money"
)

type statementModel struct {
	StatementID      string          `gorm:"column:statement_id;primaryKey"`
	Month            string          `gorm:"column:month;size:7;uniqueIndex;not null"`
	RewardTotal      decimal.Decimal `gorm:"column:reward_total;type:numeric(14,2)"`
	RewardAssigned   decimal.Decimal `gorm:"column:reward_assigned;type:numeric(14,2)"`
	Currency         string          `gorm:"column:currency;size:8"`
	QuantityAssigned int             `gorm:"column:quantity_assigned"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (statementModel) TableName() string { return "monthly_statements" }

type processedOrderModel struct {
	OrderID   string    `gorm:"column:order_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (processedOrderModel) TableName() string { return "reward_processed_orders" }

func fromEntity(statement entities.MonthlyStatement) statementModel {
	return statementModel{
		StatementID:      statement.StatementID,
		Month:            statement.Month,
		RewardTotal:      statement.RewardTotal.Amount,
		RewardAssigned:   statement.RewardAssigned.Amount,
		Currency:         statement.RewardTotal.Currency,
		QuantityAssigned: statement.QuantityAssigned,
		CreatedAt:        statement.CreatedAt,
		UpdatedAt:        statement.UpdatedAt,
	}
}

func (m statementModel) toEntity() entities.MonthlyStatement {
	return entities.MonthlyStatement{
		StatementID:      m.StatementID,
		Month:            m.Month,
		RewardTotal:      money.Money{Amount: m.RewardTotal, Currency: m.Currency},
		RewardAssigned:   money.Money{Amount: m.RewardAssigned, Currency: m.Currency},
		QuantityAssigned: m.QuantityAssigned,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

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
	return r.db.AutoMigrate(&statementModel{}, &processedOrderModel{})
}

func (r *Repository) CreateStatement(ctx context.Context, statement entities.MonthlyStatement) error {
	err := r.db.WithContext(ctx).Create(fromEntity(statement)).Error
	if isUniqueViolation(err) {
		return domainerrors.ErrStatementExists
	}
	return err
}

func (r *Repository) UpdateStatement(ctx context.Context, statement entities.MonthlyStatement) error {
	result := r.db.WithContext(ctx).
		Model(&statementModel{}).
		Where("statement_id = ?", statement.StatementID).
		Updates(map[string]any{
			"reward_assigned":   statement.RewardAssigned.Amount,
			"quantity_assigned": statement.QuantityAssigned,
			"updated_at":        statement.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStatementNotFound
	}
	return nil
}

func (r *Repository) GetStatementByMonth(ctx context.Context, month string) (entities.MonthlyStatement, error) {
	var model statementModel
	err := r.db.WithContext(ctx).First(&model, "month = ?", month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.MonthlyStatement{}, domainerrors.ErrStatementNotFound
	}
	if err != nil {
		return entities.MonthlyStatement{}, err
	}
	return model.toEntity(), nil
}

func (r *Repository) IsOrderProcessed(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&processedOrderModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) MarkOrderProcessed(ctx context.Context, orderID string) error {
	err := r.db.WithContext(ctx).Create(processedOrderModel{
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	}).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *Repository) UnmarkOrderProcessed(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).
		Delete(&processedOrderModel{}, "order_id = ?", orderID).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
