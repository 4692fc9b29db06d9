package application

import (
	"context"
	"strings"
	"testing"
	"time"

	bot "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/config"
	"github.com/eduzayn/educhat/memory/domain"
	"github.com/eduzayn/educhat/memory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newService(t *testing.T) (*Service, *repository.MemoryGormRepository) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repository.NewMemoryGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return NewService(repo, config.MemoryConfig{LastMessageTTL: 24 * time.Hour, ContextLimit: 20, ContextMaxLen: 1500}), repo
}

func classification() *bot.Classification {
	return &bot.Classification{
		Intent:           "course_inquiry",
		Sentiment:        bot.SentimentNeutral,
		Confidence:       85,
		FrustrationLevel: 1,
		Urgency:          bot.UrgencyMedium,
		Keywords:         []string{"pedagogia"},
		Profile:          bot.UserProfile{Type: bot.ProfileLead, Stage: bot.StageAwareness, Interests: []string{"pedagogia", "ead"}},
	}
}

func TestExtractAndSave_UpsertByKey(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.ExtractAndSave(ctx, classification(), 1, 2, "Quero saber sobre o curso de pedagogia"))

	second := classification()
	second.Profile.Stage = bot.StageConsideration
	require.NoError(t, svc.ExtractAndSave(ctx, second, 1, 2, "qual o valor?"))

	entries, err := repo.ListActive(ctx, 1, 2, time.Now(), 0)
	require.NoError(t, err)

	byKey := map[string][]*domain.Entry{}
	for _, e := range entries {
		byKey[e.Key] = append(byKey[e.Key], e)
	}
	require.Len(t, byKey["profile_stage"], 1)
	assert.Equal(t, bot.StageConsideration, byKey["profile_stage"][0].Value)
	require.Len(t, byKey["last_message"], 1)
	assert.Equal(t, "qual o valor?", byKey["last_message"][0].Value)
	assert.NotNil(t, byKey["last_message"][0].ExpiresAt)
	assert.Equal(t, "pedagogia, ead", byKey["interests"][0].Value)
	assert.Equal(t, domain.SourceInferred, byKey["intent"][0].Source)
}

func TestGetContext_GroupsAndBounds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.ExtractAndSave(ctx, classification(), 5, 6, "oi"))

	block, err := svc.GetContext(ctx, 5, 6)
	require.NoError(t, err)

	userInfo := strings.Index(block, "## Informações do usuário")
	prefs := strings.Index(block, "## Preferências")
	contextIdx := strings.Index(block, "## Contexto")
	history := strings.Index(block, "## Histórico")
	require.True(t, userInfo >= 0 && prefs > userInfo && contextIdx > prefs && history > contextIdx, block)
	assert.Contains(t, block, "- profile_type: lead")
	assert.Contains(t, block, "- last_message: oi")

	svc.contextMaxLen = 60
	short, err := svc.GetContext(ctx, 5, 6)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(short), 60)
	assert.True(t, strings.HasPrefix(short, "## Informações do usuário"))

	empty, err := svc.GetContext(ctx, 99, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSweep_DeactivatesExpiredOnly(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	require.NoError(t, svc.ExtractAndSave(ctx, classification(), 7, 8, "bom dia"))

	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := repo.ListActive(ctx, 7, 8, base, 0)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "last_message", e.Key)
	}

	// a fresh message after the sweep starts a new active row
	require.NoError(t, svc.ExtractAndSave(ctx, classification(), 7, 8, "boa tarde"))
	entries, err = svc.Entries(ctx, 7, 8)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if e.Key == "last_message" {
			found = true
			assert.Equal(t, "boa tarde", e.Value)
		}
	}
	assert.True(t, found)
}

func TestSave_ValidatesManualEntry(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	err := svc.Save(ctx, &domain.Entry{ConversationID: 1, ContactID: 1, Type: "bogus", Key: "k", Value: "v"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)

	e := &domain.Entry{ConversationID: 1, ContactID: 1, Type: domain.TypePreferences, Key: "horario", Value: "noite", Confidence: 90}
	require.NoError(t, svc.Save(ctx, e))
	assert.Equal(t, domain.SourceManual, e.Source)
	assert.NotZero(t, e.ID)

	require.NoError(t, svc.Forget(ctx, e.ID))
	assert.ErrorIs(t, svc.Forget(ctx, e.ID), domain.ErrEntryNotFound)
}
