package outbox

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"arbor/internal/shared/events"
)

type messageModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	EventType  string    `gorm:"column:event_type;size:128;index;not null"`
	Payload    []byte    `gorm:"column:payload;type:jsonb"`
	Status     string    `gorm:"column:status;size:16;index;not null"`
	RetryCount int       `gorm:"column:retry_count"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (messageModel) TableName() string { return "distribution_outbox" }

// Store persists outbox rows through gorm. AppendOutbox satisfies the
// per-service OutboxWriter ports, so one store serves every module.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&messageModel{})
}

func (s *Store) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Create(messageModel{
		ID:        envelope.EventID,
		EventType: envelope.EventType,
		Payload:   payload,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

// FetchPending returns up to limit unpublished rows, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []messageModel
	err := s.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(models))
	for _, model := range models {
		messages = append(messages, Message{
			ID:         model.ID,
			EventType:  model.EventType,
			Payload:    model.Payload,
			Status:     model.Status,
			RetryCount: model.RetryCount,
		})
	}
	return messages, nil
}

func (s *Store) MarkPublished(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": "published", "updated_at": time.Now().UTC()}).Error
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      "failed",
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}
