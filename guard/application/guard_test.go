package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eduzayn/educhat/core/rules"
	"github.com/eduzayn/educhat/guard/domain"
	"github.com/eduzayn/educhat/guard/repository"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeOutbound struct {
	since    time.Time
	contents []string
}

func (f *fakeOutbound) RecentOutbound(ctx context.Context, conversationID uint, since time.Time) ([]string, error) {
	f.since = since
	return f.contents, nil
}

func newGuard(t *testing.T, out *fakeOutbound) (*Guard, *repository.BlockGormRepository) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repository.NewBlockGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return NewGuard(rules.Default(), out, repo), repo
}

func TestShouldBlock_Patterns(t *testing.T) {
	g, _ := newGuard(t, &fakeOutbound{})
	ctx := context.Background()

	cases := map[string]string{
		"Esta é uma MENSAGEM AUTOMATICA, não responda":  "pattern:automated_notice",
		"[BOT] seu pedido foi recebido":                 "pattern:bot_prefix",
		"Estamos fora do horário de atendimento":        "pattern:out_of_office",
		"Este é um atendimento automatizado da empresa": "pattern:automated_service",
	}
	for text, reason := range cases {
		v, err := g.ShouldBlock(ctx, text, 1)
		require.NoError(t, err)
		assert.True(t, v.Blocked, text)
		assert.Equal(t, reason, v.Reason, text)
	}

	v, err := g.ShouldBlock(ctx, "Quero saber sobre o curso de pedagogia", 1)
	require.NoError(t, err)
	assert.False(t, v.Blocked)
}

func TestShouldBlock_EchoWithinWindow(t *testing.T) {
	out := &fakeOutbound{contents: []string{"Olá! Como posso ajudar?"}}
	g, _ := newGuard(t, out)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	v, err := g.ShouldBlock(context.Background(), "  olá! como posso ajudar? ", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.Verdict{Blocked: true, Reason: domain.ReasonEchoOfOutbound}, v)
	assert.Equal(t, now.Add(-60*time.Second), out.since)
}

func TestCheck_RecordsBlockEvent(t *testing.T) {
	g, repo := newGuard(t, &fakeOutbound{})
	ctx := context.Background()

	msg := &inbox.Message{ID: 11, ConversationID: 3, Type: inbox.MessageText, Content: "[bot] resposta automática"}
	v, err := g.Check(ctx, msg)
	require.NoError(t, err)
	assert.True(t, v.Blocked)

	events, err := repo.ListByConversation(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint(11), events[0].MessageID)
	assert.Equal(t, "pattern:bot_prefix", events[0].Reason)

	media := &inbox.Message{ID: 12, ConversationID: 3, Type: inbox.MessageImage, Content: "http://x/img.jpg"}
	v, err = g.Check(ctx, media)
	require.NoError(t, err)
	assert.False(t, v.Blocked)
}
