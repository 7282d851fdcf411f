package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
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
	return r.db.AutoMigrate(&distributorModel{}, &leaderModel{})
}

func (r *Repository) GetDistributor(ctx context.Context, distributorID string) (entities.Distributor, error) {
	var row distributorModel
	err := r.db.WithContext(ctx).
		Where("distributor_id = ?", strings.TrimSpace(distributorID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Distributor{}, domainerrors.ErrDistributorNotFound
		}
		return entities.Distributor{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetDistributorByUser(ctx context.Context, userID string) (entities.Distributor, error) {
	var row distributorModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Distributor{}, domainerrors.ErrDistributorNotFound
		}
		return entities.Distributor{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListDistributors(ctx context.Context) ([]entities.Distributor, error) {
	var rows []distributorModel
	if err := r.db.WithContext(ctx).Order("distributor_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Distributor, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateDistributor(ctx context.Context, distributor entities.Distributor) error {
	row := distributorModelFromEntity(distributor)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDistributorExists
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateDistributor(ctx context.Context, distributor entities.Distributor) error {
	row := distributorModelFromEntity(distributor)
	result := r.db.WithContext(ctx).
		Model(&distributorModel{}).
		Where("distributor_id = ?", row.DistributorID).
		Updates(map[string]any{
			"upstream_id":  row.UpstreamID,
			"level_number": row.LevelNumber,
			"is_senior":    row.IsSenior,
			"is_leader":    row.IsLeader,
			"active":       row.Active,
			"updated_at":   row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrDistributorNotFound
	}
	return nil
}

func (r *Repository) ListLeaders(ctx context.Context) ([]entities.Leader, error) {
	var rows []leaderModel
	if err := r.db.WithContext(ctx).Order("leader_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Leader, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateLeader(ctx context.Context, leader entities.Leader) error {
	row := leaderModelFromEntity(leader)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyLeader
		}
		return err
	}
	return nil
}

type distributorModel struct {
	DistributorID string    `gorm:"column:distributor_id;primaryKey"`
	UserID        string    `gorm:"column:user_id;uniqueIndex"`
	UpstreamID    *string   `gorm:"column:upstream_id;index"`
	LevelNumber   int       `gorm:"column:level_number"`
	IsSenior      bool      `gorm:"column:is_senior"`
	IsLeader      bool      `gorm:"column:is_leader"`
	Active        bool      `gorm:"column:active"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (distributorModel) TableName() string { return "distributors" }

func (m distributorModel) toEntity() entities.Distributor {
	return entities.Distributor{
		DistributorID: m.DistributorID,
		UserID:        m.UserID,
		UpstreamID:    m.UpstreamID,
		LevelNumber:   m.LevelNumber,
		IsSenior:      m.IsSenior,
		IsLeader:      m.IsLeader,
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func distributorModelFromEntity(d entities.Distributor) distributorModel {
	return distributorModel{
		DistributorID: strings.TrimSpace(d.DistributorID),
		UserID:        strings.TrimSpace(d.UserID),
		UpstreamID:    d.UpstreamID,
		LevelNumber:   d.LevelNumber,
		IsSenior:      d.IsSenior,
		IsLeader:      d.IsLeader,
		Active:        d.Active,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type leaderModel struct {
	LeaderID      string    `gorm:"column:leader_id;primaryKey"`
	DistributorID string    `gorm:"column:distributor_id;index"`
	Status        string    `gorm:"column:status"`
	Active        bool      `gorm:"column:active"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (leaderModel) TableName() string { return "distribution_leaders" }

func (m leaderModel) toEntity() entities.Leader {
	return entities.Leader{
		LeaderID:      m.LeaderID,
		DistributorID: m.DistributorID,
		Status:        entities.LeaderStatus(m.Status),
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
	}
}

func leaderModelFromEntity(l entities.Leader) leaderModel {
	return leaderModel{
		LeaderID:      strings.TrimSpace(l.LeaderID),
		DistributorID: strings.TrimSpace(l.DistributorID),
		Status:        string(l.Status),
		Active:        l.Active,
		CreatedAt:     l.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
