package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduzayn/educhat/handoff/domain"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type teamModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:100;not null;uniqueIndex"`
	Macrosetor string `gorm:"size:32;not null;index"`
	Active     bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (teamModel) TableName() string { return "teams" }

type agentModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null"`
	Email     string `gorm:"size:190;index"`
	TeamID    uint   `gorm:"not null;index"`
	Active    bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (agentModel) TableName() string { return "users" }

type handoffModel struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;index"`
	FromTeamID     *uint  `gorm:"index"`
	ToTeamID       *uint  `gorm:"index"`
	ToUserID       *uint  `gorm:"index"`
	Type           string `gorm:"size:32;not null"`
	Reason         string `gorm:"type:text"`
	Priority       string `gorm:"size:16;not null"`
	Status         string `gorm:"size:16;not null;index"`
	Snapshot       datatypes.JSONType[domain.Snapshot]
	Metadata       datatypes.JSONMap
	Error          string `gorm:"type:text"`
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (handoffModel) TableName() string { return "handoffs" }

type HandoffGormRepository struct {
	db *gorm.DB
}

func NewHandoffGormRepository(db *gorm.DB) *HandoffGormRepository {
	return &HandoffGormRepository{db: db}
}

func (r *HandoffGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&teamModel{}, &agentModel{}, &handoffModel{})
}

func (r *HandoffGormRepository) CreateTeam(ctx context.Context, t *domain.Team) error {
	m := teamModel{Name: t.Name, Macrosetor: t.Macrosetor, Active: t.Active}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTeam
		}
		return err
	}
	t.ID, t.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *HandoffGormRepository) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	var models []teamModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Team, 0, len(models))
	for i := range models {
		out = append(out, toTeam(&models[i]))
	}
	return out, nil
}

func (r *HandoffGormRepository) TeamForMacrosetor(ctx context.Context, macrosetor string) (*domain.Team, error) {
	var m teamModel
	err := r.db.WithContext(ctx).
		Where("macrosetor = ? AND active = ?", macrosetor, true).
		Order("id ASC").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTeam(&m), nil
}

func (r *HandoffGormRepository) TeamByID(ctx context.Context, id uint) (*domain.Team, error) {
	var m teamModel
	err := r.db.WithContext(ctx).Take(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTeam(&m), nil
}

func (r *HandoffGormRepository) CreateAgent(ctx context.Context, a *domain.Agent) error {
	m := agentModel{Name: a.Name, Email: a.Email, TeamID: a.TeamID, Active: a.Active}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	a.ID, a.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *HandoffGormRepository) AgentByID(ctx context.Context, id uint) (*domain.Agent, error) {
	var m agentModel
	err := r.db.WithContext(ctx).Take(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return toAgent(&m), nil
}

func (r *HandoffGormRepository) LeastLoadedAgent(ctx context.Context, teamID uint) (*domain.Agent, error) {
	var m agentModel
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("LEFT JOIN conversations ON conversations.assigned_user_id = users.id AND conversations.status <> ?", "resolved").
		Where("users.team_id = ? AND users.active = ?", teamID, true).
		Group("users.id").
		Order("COUNT(conversations.id) ASC").
		Order("users.id ASC").
		Limit(1).
		Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, domain.ErrAgentNotFound
	}
	return toAgent(&m), nil
}

func (r *HandoffGormRepository) Execute(ctx context.Context, h *domain.Handoff) error {
	if h.ToTeamID == nil && h.ToUserID == nil {
		return domain.ErrNoTarget
	}

	step := "load_conversation"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv struct {
			TeamID *uint
		}
		err := tx.Table("conversations").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("team_id").
			Where("id = ?", h.ConversationID).
			Take(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		h.FromTeamID = conv.TeamID

		step = "insert_handoff"
		m := toModel(h)
		m.Status = string(domain.StatusPending)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}

		step = "assign_conversation"
		now := time.Now()
		updates := map[string]any{
			"priority":          h.Priority,
			"assignment_method": assignmentMethod(h.Type),
			"updated_at":        now,
		}
		if h.ToTeamID != nil {
			updates["team_id"] = *h.ToTeamID
		}
		if h.ToUserID != nil {
			updates["assigned_user_id"] = *h.ToUserID
			updates["assigned_at"] = now
		}
		if err := tx.Table("conversations").Where("id = ?", h.ConversationID).Updates(updates).Error; err != nil {
			return err
		}

		step = "complete_handoff"
		res := tx.Model(&handoffModel{}).
			Where("id = ? AND status = ?", m.ID, string(domain.StatusPending)).
			Updates(map[string]any{"status": string(domain.StatusCompleted), "completed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errors.New("handoff left pending")
		}

		h.ID = m.ID
		h.Status = domain.StatusCompleted
		h.CompletedAt = &now
		h.CreatedAt = m.CreatedAt
		return nil
	})
	if err == nil {
		return nil
	}

	failed := toModel(h)
	failed.Status = string(domain.StatusFailed)
	failed.Error = err.Error()
	if ferr := r.db.WithContext(ctx).Create(&failed).Error; ferr != nil {
		logrus.WithError(ferr).Errorf("[HANDOFF] Could not record failed handoff for conversation %d", h.ConversationID)
		return &domain.HandoffExecutionFailure{Step: step, Err: err}
	}
	h.ID = failed.ID
	h.Status = domain.StatusFailed
	h.Error = failed.Error
	h.CreatedAt = failed.CreatedAt
	return &domain.HandoffExecutionFailure{HandoffID: failed.ID, Step: step, Err: err}
}

func (r *HandoffGormRepository) ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*domain.Handoff, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []handoffModel
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Handoff, 0, len(models))
	for i := range models {
		out = append(out, toHandoff(&models[i]))
	}
	return out, nil
}

func assignmentMethod(t domain.Type) string {
	switch t {
	case domain.TypeManual, domain.TypeCorrectedRedistribution:
		return "manual"
	default:
		return "automatic"
	}
}

func toModel(h *domain.Handoff) handoffModel {
	return handoffModel{
		ConversationID: h.ConversationID,
		FromTeamID:     h.FromTeamID,
		ToTeamID:       h.ToTeamID,
		ToUserID:       h.ToUserID,
		Type:           string(h.Type),
		Reason:         h.Reason,
		Priority:       h.Priority,
		Snapshot:       datatypes.NewJSONType(h.Snapshot),
		Metadata:       datatypes.JSONMap(h.Metadata),
	}
}

func toHandoff(m *handoffModel) *domain.Handoff {
	return &domain.Handoff{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		FromTeamID:     m.FromTeamID,
		ToTeamID:       m.ToTeamID,
		ToUserID:       m.ToUserID,
		Type:           domain.Type(m.Type),
		Reason:         m.Reason,
		Priority:       m.Priority,
		Status:         domain.Status(m.Status),
		Snapshot:       m.Snapshot.Data(),
		Metadata:       m.Metadata,
		Error:          m.Error,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toTeam(m *teamModel) *domain.Team {
	return &domain.Team{ID: m.ID, Name: m.Name, Macrosetor: m.Macrosetor, Active: m.Active, CreatedAt: m.CreatedAt}
}

func toAgent(m *agentModel) *domain.Agent {
	return &domain.Agent{ID: m.ID, Name: m.Name, Email: m.Email, TeamID: m.TeamID, Active: m.Active, CreatedAt: m.CreatedAt}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
