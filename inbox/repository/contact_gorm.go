package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eduzayn/educhat/inbox/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contactModel struct {
	ID             uint                        `gorm:"primaryKey"`
	Name           string                      `gorm:"not null"`
	Phone          *string                     `gorm:"size:32;uniqueIndex:idx_contacts_phone_origin,priority:1"`
	Origin         string                      `gorm:"size:32;not null;uniqueIndex:idx_contacts_phone_origin,priority:2"`
	Email          *string                     `gorm:"size:255;index"`
	Avatar         string                      `gorm:"type:text"`
	Tags           datatypes.JSONSlice[string] `gorm:"not null"`
	AssignedUserID *uint                       `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (contactModel) TableName() string {
	return "contacts"
}

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

func (r *ContactGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&contactModel{})
}

// Upsert looks the phone up across origins first; when absent it inserts with
// ON CONFLICT DO NOTHING on (phone, origin) and re-reads, so two concurrent
// deliveries for one phone end on the same row.
func (r *ContactGormRepository) Upsert(ctx context.Context, c *domain.Contact) (*domain.Contact, bool, error) {
	if c.Phone == "" {
		return nil, false, domain.ErrInvalidPhone
	}
	db := r.db.WithContext(ctx)

	var existing contactModel
	err := db.Where("phone = ?", c.Phone).Order("id ASC").Take(&existing).Error
	if err == nil {
		return fromContactModel(existing), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	m := toContactModel(c)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}, {Name: "origin"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var stored contactModel
	if err := db.Where("phone = ? AND origin = ?", c.Phone, m.Origin).Take(&stored).Error; err != nil {
		return nil, false, err
	}
	return fromContactModel(stored), res.RowsAffected == 1, nil
}

func (r *ContactGormRepository) GetByID(ctx context.Context, id uint) (*domain.Contact, error) {
	var m contactModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return fromContactModel(m), nil
}

func (r *ContactGormRepository) UpdateAvatar(ctx context.Context, id uint, avatar string) error {
	res := r.db.WithContext(ctx).Model(&contactModel{}).Where("id = ?", id).Update("avatar", avatar)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

// AddTags merges tags into the contact's tag set under a row lock.
func (r *ContactGormRepository) AddTags(ctx context.Context, id uint, tags ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m contactModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrContactNotFound
			}
			return err
		}
		merged, changed := mergeTags(m.Tags, tags)
		if !changed {
			return nil
		}
		return tx.Model(&contactModel{}).Where("id = ?", id).Update("tags", datatypes.JSONSlice[string](merged)).Error
	})
}

func mergeTags(current []string, add []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(current))
	out := make([]string, 0, len(current)+len(add))
	for _, t := range current {
		seen[t] = struct{}{}
		out = append(out, t)
	}
	changed := false
	for _, t := range add {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		changed = true
	}
	return out, changed
}

func toContactModel(c *domain.Contact) contactModel {
	m := contactModel{
		ID:             c.ID,
		Name:           c.Name,
		Origin:         c.Origin,
		Avatar:         c.Avatar,
		Tags:           datatypes.JSONSlice[string](append([]string{}, c.Tags...)),
		AssignedUserID: c.AssignedUserID,
	}
	if m.Origin == "" {
		m.Origin = domain.ChannelWhatsApp
	}
	if c.Phone != "" {
		phone := c.Phone
		m.Phone = &phone
	}
	if c.Email != "" {
		email := c.Email
		m.Email = &email
	}
	return m
}

func fromContactModel(m contactModel) *domain.Contact {
	c := &domain.Contact{
		ID:             m.ID,
		Name:           m.Name,
		Origin:         m.Origin,
		Avatar:         m.Avatar,
		Tags:           append([]string{}, m.Tags...),
		AssignedUserID: m.AssignedUserID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Phone != nil {
		c.Phone = *m.Phone
	}
	if m.Email != nil {
		c.Email = *m.Email
	}
	return c
}
