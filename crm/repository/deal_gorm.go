package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eduzayn/educhat/crm/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type dealModel struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"size:200;not null"`
	ContactID   uint    `gorm:"not null;uniqueIndex:idx_deals_active_contact_macrosetor,where:active = true;index"`
	Macrosetor  string  `gorm:"size:32;not null;uniqueIndex:idx_deals_active_contact_macrosetor,where:active = true;index"`
	Stage       string  `gorm:"size:32;not null"`
	StageIndex  int     `gorm:"not null"`
	Value       float64 `gorm:"not null"`
	Probability int     `gorm:"not null"`
	OwnerID     *uint   `gorm:"index"`
	Origin      string  `gorm:"size:32"`
	Tags        datatypes.JSONSlice[string]
	Notes       string `gorm:"type:text"`
	Active      bool   `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (dealModel) TableName() string {
	return "deals"
}

type DealGormRepository struct {
	db *gorm.DB
}

func NewDealGormRepository(db *gorm.DB) *DealGormRepository {
	return &DealGormRepository{db: db}
}

func (r *DealGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&dealModel{})
}

func (r *DealGormRepository) Active(ctx context.Context, contactID uint, macrosetor string) (*domain.Deal, error) {
	var m dealModel
	err := r.db.WithContext(ctx).
		Where("contact_id = ? AND macrosetor = ? AND active = ?", contactID, macrosetor, true).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDeal(&m), nil
}

func (r *DealGormRepository) GetByID(ctx context.Context, id uint) (*domain.Deal, error) {
	var m dealModel
	err := r.db.WithContext(ctx).Take(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDeal(&m), nil
}

func (r *DealGormRepository) Create(ctx context.Context, d *domain.Deal) error {
	m := dealModel{
		Name:        d.Name,
		ContactID:   d.ContactID,
		Macrosetor:  d.Macrosetor,
		Stage:       d.Stage,
		StageIndex:  d.StageIndex,
		Value:       d.Value,
		Probability: d.Probability,
		OwnerID:     d.OwnerID,
		Origin:      d.Origin,
		Tags:        datatypes.JSONSlice[string](d.Tags),
		Notes:       d.Notes,
		Active:      true,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrActiveDealExists
	}
	*d = *toDeal(&m)
	return nil
}

func (r *DealGormRepository) Advance(ctx context.Context, id uint, stage string, stageIndex, probability int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&dealModel{}).
		Where("id = ? AND active = ? AND stage_index < ?", id, true, stageIndex).
		Updates(map[string]any{
			"stage":       stage,
			"stage_index": stageIndex,
			"probability": probability,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *DealGormRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Deal, error) {
	q := r.db.WithContext(ctx).Model(&dealModel{})
	if filter.ContactID != 0 {
		q = q.Where("contact_id = ?", filter.ContactID)
	}
	if filter.Macrosetor != "" {
		q = q.Where("macrosetor = ?", filter.Macrosetor)
	}
	if filter.Stage != "" {
		q = q.Where("stage = ?", filter.Stage)
	}
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}

	var models []dealModel
	if err := q.Order("updated_at DESC").Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Deal, 0, len(models))
	for i := range models {
		out = append(out, toDeal(&models[i]))
	}
	return out, nil
}

func toDeal(m *dealModel) *domain.Deal {
	tags := []string(m.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &domain.Deal{
		ID:          m.ID,
		Name:        m.Name,
		ContactID:   m.ContactID,
		Macrosetor:  m.Macrosetor,
		Stage:       m.Stage,
		StageIndex:  m.StageIndex,
		Value:       m.Value,
		Probability: m.Probability,
		OwnerID:     m.OwnerID,
		Origin:      m.Origin,
		Tags:        tags,
		Notes:       m.Notes,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
