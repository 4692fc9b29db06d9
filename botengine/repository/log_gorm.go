package repository

import (
	"context"
	"time"

	"github.com/eduzayn/educhat/botengine/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type classificationLogModel struct {
	ID             uint   `gorm:"primaryKey"`
	MessageID      uint   `gorm:"index"`
	ConversationID uint   `gorm:"index"`
	ContactID      uint   `gorm:"index"`
	Provider       string `gorm:"size:32;not null"`
	Intent         string `gorm:"size:64;index"`
	Confidence     int
	Mode           string `gorm:"size:16"`
	LatencyMS      int64
	Error          string                                    `gorm:"type:text"`
	Snapshot       datatypes.JSONType[domain.Classification] `gorm:"not null"`
	CreatedAt      time.Time                                 `gorm:"index"`
}

func (classificationLogModel) TableName() string {
	return "ai_classification_logs"
}

type LogGormRepository struct {
	db *gorm.DB
}

func NewLogGormRepository(db *gorm.DB) *LogGormRepository {
	return &LogGormRepository{db: db}
}

func (r *LogGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&classificationLogModel{})
}

func (r *LogGormRepository) Create(ctx context.Context, entry *domain.LogEntry) error {
	m := classificationLogModel{
		MessageID:      entry.MessageID,
		ConversationID: entry.ConversationID,
		ContactID:      entry.ContactID,
		Provider:       entry.Provider,
		Intent:         entry.Intent,
		Confidence:     entry.Confidence,
		Mode:           entry.Mode,
		LatencyMS:      entry.LatencyMS,
		Error:          entry.Error,
	}
	if entry.Snapshot != nil {
		m.Snapshot = datatypes.NewJSONType(*entry.Snapshot)
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	entry.ID = m.ID
	entry.CreatedAt = m.CreatedAt
	return nil
}

func (r *LogGormRepository) ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*domain.LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []classificationLogModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.LogEntry, 0, len(models))
	for _, m := range models {
		snap := m.Snapshot.Data()
		out = append(out, &domain.LogEntry{
			ID:             m.ID,
			MessageID:      m.MessageID,
			ConversationID: m.ConversationID,
			ContactID:      m.ContactID,
			Provider:       m.Provider,
			Intent:         m.Intent,
			Confidence:     m.Confidence,
			Mode:           m.Mode,
			LatencyMS:      m.LatencyMS,
			Error:          m.Error,
			Snapshot:       &snap,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}
