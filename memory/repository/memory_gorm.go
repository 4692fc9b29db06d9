package repository

import (
	"context"
	"time"

	"github.com/eduzayn/educhat/memory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type entryModel struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;uniqueIndex:idx_memory_active_key,where:active = true;index"`
	ContactID      uint   `gorm:"not null;uniqueIndex:idx_memory_active_key,where:active = true"`
	Type           string `gorm:"size:32;not null;uniqueIndex:idx_memory_active_key,where:active = true"`
	Key            string `gorm:"size:128;not null;uniqueIndex:idx_memory_active_key,where:active = true"`
	Value          string `gorm:"type:text;not null"`
	Confidence     int    `gorm:"not null;default:0"`
	Source         string `gorm:"size:16;not null"`
	ExpiresAt      *time.Time
	Active         bool `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (entryModel) TableName() string {
	return "ai_memories"
}

type MemoryGormRepository struct {
	db *gorm.DB
}

func NewMemoryGormRepository(db *gorm.DB) *MemoryGormRepository {
	return &MemoryGormRepository{db: db}
}

func (r *MemoryGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&entryModel{})
}

func (r *MemoryGormRepository) Upsert(ctx context.Context, e *domain.Entry) error {
	m := entryModel{
		ConversationID: e.ConversationID,
		ContactID:      e.ContactID,
		Type:           string(e.Type),
		Key:            e.Key,
		Value:          e.Value,
		Confidence:     e.Confidence,
		Source:         e.Source,
		ExpiresAt:      e.ExpiresAt,
		Active:         true,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "conversation_id"}, {Name: "contact_id"}, {Name: "type"}, {Name: "key"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "active = true"}}},
		DoUpdates:   clause.AssignmentColumns([]string{"value", "confidence", "source", "expires_at", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return err
	}

	var stored entryModel
	err = r.db.WithContext(ctx).
		Where("conversation_id = ? AND contact_id = ? AND type = ? AND key = ? AND active = ?",
			e.ConversationID, e.ContactID, string(e.Type), e.Key, true).
		First(&stored).Error
	if err != nil {
		return err
	}
	*e = *toEntry(&stored)
	return nil
}

func (r *MemoryGormRepository) ListActive(ctx context.Context, conversationID, contactID uint, now time.Time, limit int) ([]*domain.Entry, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND contact_id = ? AND active = ?", conversationID, contactID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("confidence DESC").Order("updated_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []entryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Entry, 0, len(models))
	for i := range models {
		out = append(out, toEntry(&models[i]))
	}
	return out, nil
}

func (r *MemoryGormRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&entryModel{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *MemoryGormRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entryModel{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func toEntry(m *entryModel) *domain.Entry {
	return &domain.Entry{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		ContactID:      m.ContactID,
		Type:           domain.EntryType(m.Type),
		Key:            m.Key,
		Value:          m.Value,
		Confidence:     m.Confidence,
		Source:         m.Source,
		ExpiresAt:      m.ExpiresAt,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
