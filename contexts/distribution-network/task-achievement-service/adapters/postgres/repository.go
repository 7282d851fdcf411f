package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/task-achievement-service/domain/errors"
	"arbor/internal/shared/money"
)

type taskModel struct {
	TaskID       string          `gorm:"column:task_id;primaryKey"`
	TypeID       string          `gorm:"column:type_id;size:64;not null"`
	Title        string          `gorm:"column:title"`
	RewardAmount decimal.Decimal `gorm:"column:reward_amount;type:numeric(12,2)"`
	RewardCcy    string          `gorm:"column:reward_currency;size:8"`
	CycleDays    int             `gorm:"column:cycle_days"`
	Newcomer     bool            `gorm:"column:newcomer"`
	Upgrade      bool            `gorm:"column:upgrade"`
	Quantity     float64         `gorm:"column:quantity"`
	MinAmount    decimal.Decimal `gorm:"column:min_amount;type:numeric(12,2)"`
	MinAmountCcy string          `gorm:"column:min_amount_currency;size:8"`
	Active       bool            `gorm:"column:active"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (taskModel) TableName() string { return "distribution_tasks" }

type acceptanceModel struct {
	AcceptanceID  string    `gorm:"column:acceptance_id;primaryKey"`
	TaskID        string    `gorm:"column:task_id;index;not null;uniqueIndex:uniq_task_distributor"`
	DistributorID string    `gorm:"column:distributor_id;index;not null;uniqueIndex:uniq_task_distributor"`
	Achievement   float64   `gorm:"column:achievement"`
	Completed     bool      `gorm:"column:completed"`
	CompletedAt   *int64    `gorm:"column:completed_at_unix"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (acceptanceModel) TableName() string { return "task_acceptances" }

type achievementModel struct {
	AchievementID string    `gorm:"column:achievement_id;primaryKey"`
	AcceptanceID  string    `gorm:"column:acceptance_id;index;not null"`
	SourceType    string    `gorm:"column:source_type;size:32;not null;uniqueIndex:uniq_acceptance_source"`
	SourceID      string    `gorm:"column:source_id;not null;uniqueIndex:uniq_acceptance_source"`
	Score         float64   `gorm:"column:score"`
	Valid         bool      `gorm:"column:valid"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (achievementModel) TableName() string { return "task_achievements" }

func (m taskModel) toEntity() entities.Task {
	return entities.Task{
		TaskID:    m.TaskID,
		TypeID:    m.TypeID,
		Title:     m.Title,
		Reward:    money.Money{Amount: m.RewardAmount, Currency: m.RewardCcy},
		CycleDays: m.CycleDays,
		Newcomer:  m.Newcomer,
		Upgrade:   m.Upgrade,
		Quantity:  m.Quantity,
		MinAmount: money.Money{Amount: m.MinAmount, Currency: m.MinAmountCcy},
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func acceptanceFromEntity(acceptance entities.Acceptance) acceptanceModel {
	model := acceptanceModel{
		AcceptanceID:  acceptance.AcceptanceID,
		TaskID:        acceptance.TaskID,
		DistributorID: acceptance.DistributorID,
		Achievement:   acceptance.Achievement,
		Completed:     acceptance.Completed,
		CreatedAt:     acceptance.CreatedAt,
	}
	if acceptance.CompletedAt != nil {
		unix := acceptance.CompletedAt.Unix()
		model.CompletedAt = &unix
	}
	return model
}

func (m acceptanceModel) toEntity() entities.Acceptance {
	acceptance := entities.Acceptance{
		AcceptanceID:  m.AcceptanceID,
		TaskID:        m.TaskID,
		DistributorID: m.DistributorID,
		Achievement:   m.Achievement,
		Completed:     m.Completed,
		CreatedAt:     m.CreatedAt,
	}
	if m.CompletedAt != nil {
		at := time.Unix(*m.CompletedAt, 0).UTC()
		acceptance.CompletedAt = &at
	}
	return acceptance
}

// Repository persists tasks, acceptances and achievements through gorm.
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
	return r.db.AutoMigrate(&taskModel{}, &acceptanceModel{}, &achievementModel{})
}

func (r *Repository) GetTask(ctx context.Context, taskID string) (entities.Task, error) {
	var model taskModel
	err := r.db.WithContext(ctx).First(&model, "task_id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Task{}, domainerrors.ErrTaskNotFound
	}
	if err != nil {
		return entities.Task{}, err
	}
	return model.toEntity(), nil
}

func (r *Repository) ListActiveTasks(ctx context.Context) ([]entities.Task, error) {
	var models []taskModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("task_id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.Task, 0, len(models))
	for _, model := range models {
		items = append(items, model.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateAcceptance(ctx context.Context, acceptance entities.Acceptance) error {
	err := r.db.WithContext(ctx).Create(acceptanceFromEntity(acceptance)).Error
	if isUniqueViolation(err) {
		return domainerrors.ErrAlreadyAccepted
	}
	return err
}

func (r *Repository) UpdateAcceptance(ctx context.Context, acceptance entities.Acceptance) error {
	model := acceptanceFromEntity(acceptance)
	result := r.db.WithContext(ctx).
		Model(&acceptanceModel{}).
		Where("acceptance_id = ?", acceptance.AcceptanceID).
		Updates(map[string]any{
			"achievement":       model.Achievement,
			"completed":         model.Completed,
			"completed_at_unix": model.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAcceptanceNotFound
	}
	return nil
}

func (r *Repository) GetAcceptance(ctx context.Context, acceptanceID string) (entities.Acceptance, error) {
	var model acceptanceModel
	err := r.db.WithContext(ctx).First(&model, "acceptance_id = ?", acceptanceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Acceptance{}, domainerrors.ErrAcceptanceNotFound
	}
	if err != nil {
		return entities.Acceptance{}, err
	}
	return model.toEntity(), nil
}

func (r *Repository) ListAcceptancesByOwners(ctx context.Context, ownerIDs []string) ([]entities.Acceptance, error) {
	var models []acceptanceModel
	err := r.db.WithContext(ctx).
		Where("distributor_id IN ?", ownerIDs).
		Order("acceptance_id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.Acceptance, 0, len(models))
	for _, model := range models {
		items = append(items, model.toEntity())
	}
	return items, nil
}

func (r *Repository) ListAcceptancesByDistributor(ctx context.Context, distributorID string) ([]entities.Acceptance, error) {
	return r.ListAcceptancesByOwners(ctx, []string{distributorID})
}

func (r *Repository) AppendAchievement(ctx context.Context, achievement entities.Achievement) error {
	model := achievementModel{
		AchievementID: achievement.AchievementID,
		AcceptanceID:  achievement.AcceptanceID,
		SourceType:    achievement.SourceType,
		SourceID:      achievement.SourceID,
		Score:         achievement.Score,
		Valid:         achievement.Valid,
		CreatedAt:     achievement.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *Repository) HasAchievementForSource(ctx context.Context, acceptanceID string, sourceType string, sourceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&achievementModel{}).
		Where("acceptance_id = ? AND source_type = ? AND source_id = ?", acceptanceID, sourceType, sourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ListAchievements(ctx context.Context, acceptanceID string) ([]entities.Achievement, error) {
	var models []achievementModel
	err := r.db.WithContext(ctx).
		Where("acceptance_id = ?", acceptanceID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.Achievement, 0, len(models))
	for _, model := range models {
		items = append(items, entities.Achievement{
			AchievementID: model.AchievementID,
			AcceptanceID:  model.AcceptanceID,
			SourceType:    model.SourceType,
			SourceID:      model.SourceID,
			Score:         model.Score,
			Valid:         model.Valid,
			CreatedAt:     model.CreatedAt,
		})
	}
	return items, nil
}
