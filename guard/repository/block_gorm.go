package repository

import (
	"context"
	"time"

	"github.com/eduzayn/educhat/guard/domain"
	"gorm.io/gorm"
)

type blockEventModel struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;index"`
	MessageID      uint   `gorm:"index"`
	Reason         string `gorm:"size:128;not null"`
	Snippet        string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (blockEventModel) TableName() string {
	return "auto_reply_blocks"
}

type BlockGormRepository struct {
	db *gorm.DB
}

func NewBlockGormRepository(db *gorm.DB) *BlockGormRepository {
	return &BlockGormRepository{db: db}
}

func (r *BlockGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&blockEventModel{})
}

func (r *BlockGormRepository) Record(ctx context.Context, ev *domain.BlockEvent) error {
	m := blockEventModel{
		ConversationID: ev.ConversationID,
		MessageID:      ev.MessageID,
		Reason:         ev.Reason,
		Snippet:        ev.Snippet,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	ev.ID = m.ID
	ev.CreatedAt = m.CreatedAt
	return nil
}

func (r *BlockGormRepository) ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*domain.BlockEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []blockEventModel
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.BlockEvent, 0, len(models))
	for _, m := range models {
		out = append(out, &domain.BlockEvent{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			MessageID:      m.MessageID,
			Reason:         m.Reason,
			Snippet:        m.Snippet,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}
