package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/pkg/crypto"
	"gorm.io/gorm"
)

type channelModel struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"not null"`
	Type            string `gorm:"index;not null"`
	InstanceID      string `gorm:"uniqueIndex:idx_channels_instance;not null"`
	Token           string `gorm:"type:text"`
	ClientToken     string `gorm:"type:text"`
	Active          bool   `gorm:"index;default:true"`
	IsDefault       bool   `gorm:"default:false"`
	Status          string `gorm:"default:'unknown'"`
	StatusChangedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (channelModel) TableName() string {
	return "channels"
}

type ChannelGormRepository struct {
	db *gorm.DB
}

func NewChannelGormRepository(db *gorm.DB) *ChannelGormRepository {
	return &ChannelGormRepository{db: db}
}

func (r *ChannelGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&channelModel{})
}

func (r *ChannelGormRepository) Create(ctx context.Context, ch *domain.Channel) error {
	m, err := toChannelModel(ch)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateInstance
		}
		return err
	}
	ch.ID = m.ID
	ch.CreatedAt = m.CreatedAt
	ch.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *ChannelGormRepository) GetByID(ctx context.Context, id uint) (*domain.Channel, error) {
	var m channelModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, err
	}
	return fromChannelModel(m)
}

func (r *ChannelGormRepository) FindActiveByInstanceID(ctx context.Context, instanceID string) (*domain.Channel, error) {
	var m channelModel
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND active = ?", instanceID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, err
	}
	return fromChannelModel(m)
}

func (r *ChannelGormRepository) ListActiveDefaults(ctx context.Context) ([]*domain.Channel, error) {
	var models []channelModel
	err := r.db.WithContext(ctx).
		Where("active = ? AND is_default = ? AND type = ?", true, true, string(domain.ChannelTypeGateway)).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromChannelModels(models)
}

func (r *ChannelGormRepository) List(ctx context.Context) ([]*domain.Channel, error) {
	var models []channelModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromChannelModels(models)
}

func (r *ChannelGormRepository) Update(ctx context.Context, ch *domain.Channel) error {
	m, err := toChannelModel(ch)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&channelModel{ID: ch.ID}).
		Select("name", "type", "instance_id", "token", "client_token", "active", "is_default", "updated_at").
		Updates(&m)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return domain.ErrDuplicateInstance
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}

// UpdateStatus records a connectivity change reported by the gateway for instanceID.
func (r *ChannelGormRepository) UpdateStatus(ctx context.Context, instanceID string, status domain.ConnectionStatus, at time.Time) (*domain.Channel, error) {
	result := r.db.WithContext(ctx).Model(&channelModel{}).
		Where("instance_id = ?", instanceID).
		Updates(map[string]any{"status": string(status), "status_changed_at": at})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrChannelNotFound
	}

	var m channelModel
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&m).Error; err != nil {
		return nil, err
	}
	return fromChannelModel(m)
}

func isDuplicate(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "duplicate key value")
}

func toChannelModel(ch *domain.Channel) (channelModel, error) {
	token, err := crypto.Encrypt(ch.Token)
	if err != nil {
		return channelModel{}, err
	}
	clientToken, err := crypto.Encrypt(ch.ClientToken)
	if err != nil {
		return channelModel{}, err
	}
	status := string(ch.Status)
	if status == "" {
		status = string(domain.StatusUnknown)
	}
	return channelModel{
		ID:              ch.ID,
		Name:            ch.Name,
		Type:            string(ch.Type),
		InstanceID:      ch.InstanceID,
		Token:           token,
		ClientToken:     clientToken,
		Active:          ch.Active,
		IsDefault:       ch.IsDefault,
		Status:          status,
		StatusChangedAt: ch.StatusChangedAt,
		CreatedAt:       ch.CreatedAt,
		UpdatedAt:       ch.UpdatedAt,
	}, nil
}

func fromChannelModel(m channelModel) (*domain.Channel, error) {
	token, err := crypto.Decrypt(m.Token)
	if err != nil {
		return nil, err
	}
	clientToken, err := crypto.Decrypt(m.ClientToken)
	if err != nil {
		return nil, err
	}
	return &domain.Channel{
		ID:              m.ID,
		Name:            m.Name,
		Type:            domain.ChannelType(m.Type),
		InstanceID:      m.InstanceID,
		Token:           token,
		ClientToken:     clientToken,
		Active:          m.Active,
		IsDefault:       m.IsDefault,
		Status:          domain.ConnectionStatus(m.Status),
		StatusChangedAt: m.StatusChangedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func fromChannelModels(models []channelModel) ([]*domain.Channel, error) {
	out := make([]*domain.Channel, 0, len(models))
	for _, m := range models {
		ch, err := fromChannelModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}
