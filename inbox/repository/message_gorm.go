package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduzayn/educhat/inbox/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateGatewayID is returned by AttachGatewayID when another row
// already carries the gateway id.
var ErrDuplicateGatewayID = errors.New("gateway message id already stored on another message")

type messageModel struct {
	ID               uint   `gorm:"primaryKey"`
	ConversationID   uint   `gorm:"not null;index:idx_messages_conversation_sent,priority:1"`
	Content          string `gorm:"type:text"`
	IsFromContact    bool   `gorm:"not null"`
	Type             string `gorm:"size:16;not null"`
	Metadata         datatypes.JSONMap
	GatewayMessageID *string   `gorm:"size:128;uniqueIndex"`
	CorrelationID    *string   `gorm:"size:64;uniqueIndex"`
	IsDeleted        bool      `gorm:"not null"`
	SentAt           time.Time `gorm:"index:idx_messages_conversation_sent,priority:2"`
	DeliveredAt      *time.Time
	ReadAt           *time.Time
	CreatedAt        time.Time
}

func (messageModel) TableName() string {
	return "messages"
}

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&messageModel{})
}

func (r *MessageGormRepository) Create(ctx context.Context, msg *domain.Message) (bool, error) {
	m := toMessageModel(msg)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_message_id"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	msg.ID = m.ID
	msg.CreatedAt = m.CreatedAt
	return true, nil
}

func (r *MessageGormRepository) GetByID(ctx context.Context, id uint) (*domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m), nil
}

func (r *MessageGormRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).Where("gateway_message_id = ?", gatewayID).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m), nil
}

// AttachGatewayID stamps the gateway id on the message created with correlationID.
func (r *MessageGormRepository) AttachGatewayID(ctx context.Context, correlationID, gatewayID string) error {
	res := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("correlation_id = ? AND gateway_message_id IS NULL", correlationID).
		Update("gateway_message_id", gatewayID)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrDuplicateGatewayID
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageGormRepository) SupersedeEcho(ctx context.Context, echoID uint, correlationID, gatewayID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&messageModel{}).
			Where("id = ? AND gateway_message_id = ?", echoID, gatewayID).
			Updates(map[string]any{"is_deleted": true, "gateway_message_id": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrMessageNotFound
		}
		res = tx.Model(&messageModel{}).
			Where("correlation_id = ? AND gateway_message_id IS NULL", correlationID).
			Update("gateway_message_id", gatewayID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrMessageNotFound
		}
		return nil
	})
}

func (r *MessageGormRepository) MergeMetadata(ctx context.Context, id uint, values map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m messageModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMessageNotFound
			}
			return err
		}
		merged := datatypes.JSONMap{}
		for k, v := range m.Metadata {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		return tx.Model(&messageModel{}).Where("id = ?", id).Update("metadata", merged).Error
	})
}

// MarkDelivery sets delivered/read timestamps on exactly the messages carrying
// the given gateway ids. Timestamps are only ever set once.
func (r *MessageGormRepository) MarkDelivery(ctx context.Context, gatewayIDs []string, status domain.DeliveryStatus, at time.Time) (int64, error) {
	if len(gatewayIDs) == 0 {
		return 0, nil
	}
	q := r.db.WithContext(ctx).Model(&messageModel{}).Where("gateway_message_id IN ?", gatewayIDs)

	var res *gorm.DB
	switch status {
	case domain.DeliveryDelivered:
		res = q.Where("delivered_at IS NULL").Update("delivered_at", at)
	case domain.DeliveryRead:
		res = q.Where("read_at IS NULL").Updates(map[string]any{
			"read_at":      at,
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
		})
	default:
		return 0, nil
	}
	return res.RowsAffected, res.Error
}

func (r *MessageGormRepository) SoftDelete(ctx context.Context, id uint) (*domain.Message, error) {
	res := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return r.GetByID(ctx, id)
}

// ListRecent returns the last limit visible messages, oldest first.
func (r *MessageGormRepository) ListRecent(ctx context.Context, conversationID uint, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Message, len(models))
	for i, m := range models {
		out[len(models)-1-i] = fromMessageModel(m)
	}
	return out, nil
}

func (r *MessageGormRepository) RecentOutboundContents(ctx context.Context, conversationID uint, since time.Time) ([]string, error) {
	var contents []string
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("conversation_id = ? AND is_from_contact = ? AND is_deleted = ? AND sent_at >= ?", conversationID, false, false, since).
		Pluck("content", &contents).Error
	return contents, err
}

func isDuplicate(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "duplicate key value")
}

func toMessageModel(msg *domain.Message) messageModel {
	m := messageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		IsFromContact:  msg.IsFromContact,
		Type:           string(msg.Type),
		Metadata:       datatypes.JSONMap(msg.Metadata),
		IsDeleted:      msg.IsDeleted,
		SentAt:         msg.SentAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
	if m.Metadata == nil {
		m.Metadata = datatypes.JSONMap{}
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if msg.GatewayMessageID != "" {
		id := msg.GatewayMessageID
		m.GatewayMessageID = &id
	}
	if msg.CorrelationID != "" {
		id := msg.CorrelationID
		m.CorrelationID = &id
	}
	return m
}

func fromMessageModel(m messageModel) *domain.Message {
	msg := &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		IsFromContact:  m.IsFromContact,
		Type:           domain.MessageType(m.Type),
		Metadata:       map[string]any(m.Metadata),
		IsDeleted:      m.IsDeleted,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
	if m.GatewayMessageID != nil {
		msg.GatewayMessageID = *m.GatewayMessageID
	}
	if m.CorrelationID != nil {
		msg.CorrelationID = *m.CorrelationID
	}
	return msg
}
