package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const previewLength = 120

type conversationModel struct {
	ID                uint   `gorm:"primaryKey"`
	ContactID         uint   `gorm:"not null;uniqueIndex:idx_conversations_contact_channel,priority:1"`
	Channel           string `gorm:"size:32;not null;uniqueIndex:idx_conversations_contact_channel,priority:2"`
	ChannelInstanceID *uint  `gorm:"index"`
	Status            string `gorm:"size:16;not null;index"`
	TeamID            *uint  `gorm:"index"`
	AssignedUserID    *uint  `gorm:"index"`
	AssignmentMethod  string `gorm:"size:16"`
	AssignedAt        *time.Time
	Priority          string     `gorm:"size:16;not null"`
	Macrosetor        string     `gorm:"size:32;index"`
	UnreadCount       int        `gorm:"not null"`
	LastMessage       string     `gorm:"type:text"`
	LastMessageAt     *time.Time `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

type ConversationGormRepository struct {
	db *gorm.DB
}

func NewConversationGormRepository(db *gorm.DB) *ConversationGormRepository {
	return &ConversationGormRepository{db: db}
}

func (r *ConversationGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&conversationModel{})
}

func (r *ConversationGormRepository) Upsert(ctx context.Context, contactID uint, channel string, channelInstanceID *uint) (*domain.Conversation, bool, bool, error) {
	db := r.db.WithContext(ctx)

	m := conversationModel{
		ContactID:         contactID,
		Channel:           channel,
		ChannelInstanceID: channelInstanceID,
		Status:            string(domain.ConversationOpen),
		Priority:          "normal",
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contact_id"}, {Name: "channel"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return nil, false, false, res.Error
	}
	created := res.RowsAffected == 1

	repaired := false
	if !created && channelInstanceID != nil {
		upd := db.Model(&conversationModel{}).
			Where("contact_id = ? AND channel = ? AND channel_instance_id IS NULL", contactID, channel).
			Update("channel_instance_id", *channelInstanceID)
		if upd.Error != nil {
			return nil, false, false, upd.Error
		}
		repaired = upd.RowsAffected == 1
	}

	var stored conversationModel
	if err := db.Where("contact_id = ? AND channel = ?", contactID, channel).Take(&stored).Error; err != nil {
		return nil, false, false, err
	}
	return fromConversationModel(stored), created, repaired, nil
}

func (r *ConversationGormRepository) GetByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	var m conversationModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m), nil
}

func (r *ConversationGormRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]*domain.Conversation, error) {
	query := r.db.WithContext(ctx).Model(&conversationModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.Macrosetor != "" {
		query = query.Where("macrosetor = ?", filter.Macrosetor)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var models []conversationModel
	err := query.Order("last_message_at DESC").Order("id DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Conversation, 0, len(models))
	for _, m := range models {
		out = append(out, fromConversationModel(m))
	}
	return out, nil
}

// TouchInbound bumps the unread counter atomically and reopens resolved threads.
func (r *ConversationGormRepository) TouchInbound(ctx context.Context, id uint, preview string, at time.Time) error {
	return r.touch(ctx, id, map[string]any{
		"unread_count":    gorm.Expr("unread_count + 1"),
		"last_message":    utils.Truncate(preview, previewLength),
		"last_message_at": at,
		"status":          gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", string(domain.ConversationResolved), string(domain.ConversationOpen)),
	})
}

func (r *ConversationGormRepository) TouchOutbound(ctx context.Context, id uint, preview string, at time.Time) error {
	return r.touch(ctx, id, map[string]any{
		"last_message":    utils.Truncate(preview, previewLength),
		"last_message_at": at,
	})
}

func (r *ConversationGormRepository) SetMacrosetor(ctx context.Context, id uint, macrosetor string) error {
	return r.touch(ctx, id, map[string]any{"macrosetor": macrosetor})
}

func (r *ConversationGormRepository) touch(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&conversationModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func fromConversationModel(m conversationModel) *domain.Conversation {
	return &domain.Conversation{
		ID:                m.ID,
		ContactID:         m.ContactID,
		Channel:           m.Channel,
		ChannelInstanceID: m.ChannelInstanceID,
		Status:            domain.ConversationStatus(m.Status),
		TeamID:            m.TeamID,
		AssignedUserID:    m.AssignedUserID,
		AssignmentMethod:  domain.AssignmentMethod(m.AssignmentMethod),
		AssignedAt:        m.AssignedAt,
		Priority:          m.Priority,
		Macrosetor:        m.Macrosetor,
		UnreadCount:       m.UnreadCount,
		LastMessage:       m.LastMessage,
		LastMessageAt:     m.LastMessageAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
