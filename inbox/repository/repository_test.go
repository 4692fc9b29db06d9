package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eduzayn/educhat/inbox/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type repos struct {
	contacts      *ContactGormRepository
	conversations *ConversationGormRepository
	messages      *MessageGormRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := repos{
		contacts:      NewContactGormRepository(db),
		conversations: NewConversationGormRepository(db),
		messages:      NewMessageGormRepository(db),
	}
	ctx := context.Background()
	require.NoError(t, r.contacts.InitSchema(ctx))
	require.NoError(t, r.conversations.InitSchema(ctx))
	require.NoError(t, r.messages.InitSchema(ctx))
	return r
}

func TestContactUpsert_ConcurrentSamePhone(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]uint, workers)
	created := make([]bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, isNew, err := r.contacts.Upsert(ctx, &domain.Contact{Name: "Maria", Phone: "5511999990000", Origin: domain.ChannelWhatsApp})
			require.NoError(t, err)
			ids[i] = c.ID
			created[i] = isNew
		}(i)
	}
	wg.Wait()

	newCount := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestContactUpsert_FindsPhoneAcrossOrigins(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	first, _, err := r.contacts.Upsert(ctx, &domain.Contact{Name: "Ana", Phone: "5511888880000", Origin: "site"})
	require.NoError(t, err)

	again, created, err := r.contacts.Upsert(ctx, &domain.Contact{Name: "WhatsApp 5511888880000", Phone: "5511888880000", Origin: domain.ChannelWhatsApp})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Ana", again.Name)
}

func TestContactUpsert_RejectsEmptyPhone(t *testing.T) {
	r := newRepos(t)
	_, _, err := r.contacts.Upsert(context.Background(), &domain.Contact{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestContactAddTags_Merges(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	c, _, err := r.contacts.Upsert(ctx, &domain.Contact{Name: "Leo", Phone: "551100", Tags: []string{"lead"}})
	require.NoError(t, err)

	require.NoError(t, r.contacts.AddTags(ctx, c.ID, "comercial", "lead", ""))
	got, err := r.contacts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "comercial"}, got.Tags)

	assert.ErrorIs(t, r.contacts.AddTags(ctx, 9999, "x"), domain.ErrContactNotFound)
}

func TestConversationUpsert_SingleRowAndRepair(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	conv, created, repaired, err := r.conversations.Upsert(ctx, 1, domain.ChannelWhatsApp, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, repaired)
	assert.Nil(t, conv.ChannelInstanceID)
	assert.Equal(t, domain.ConversationOpen, conv.Status)

	instance := uint(7)
	again, created, repaired, err := r.conversations.Upsert(ctx, 1, domain.ChannelWhatsApp, &instance)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, repaired)
	assert.Equal(t, conv.ID, again.ID)
	require.NotNil(t, again.ChannelInstanceID)
	assert.Equal(t, uint(7), *again.ChannelInstanceID)

	other := uint(8)
	third, _, repaired, err := r.conversations.Upsert(ctx, 1, domain.ChannelWhatsApp, &other)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, uint(7), *third.ChannelInstanceID)
}

func TestConversationUpsert_Concurrent(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[uint]struct{}{}
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, _, _, err := r.conversations.Upsert(ctx, 42, domain.ChannelWhatsApp, nil)
			require.NoError(t, err)
			mu.Lock()
			seen[conv.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1)
}

func TestConversationTouchInbound_ReopensAndCounts(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	conv, _, _, err := r.conversations.Upsert(ctx, 3, domain.ChannelWhatsApp, nil)
	require.NoError(t, err)

	require.NoError(t, r.conversations.db.Model(&conversationModel{}).Where("id = ?", conv.ID).Update("status", "resolved").Error)

	now := time.Now().UTC()
	require.NoError(t, r.conversations.TouchInbound(ctx, conv.ID, "oi", now))
	require.NoError(t, r.conversations.TouchInbound(ctx, conv.ID, "tudo bem?", now))

	got, err := r.conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationOpen, got.Status)
	assert.Equal(t, 2, got.UnreadCount)
	assert.Equal(t, "tudo bem?", got.LastMessage)

	require.NoError(t, r.conversations.TouchOutbound(ctx, conv.ID, "resposta", now))
	got, _ = r.conversations.GetByID(ctx, conv.ID)
	assert.Equal(t, 2, got.UnreadCount)

	assert.ErrorIs(t, r.conversations.TouchInbound(ctx, 999, "x", now), domain.ErrConversationNotFound)
}

func TestMessageCreate_DuplicateGatewayID(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	m1 := &domain.Message{ConversationID: 1, Content: "oi", IsFromContact: true, Type: domain.MessageText, GatewayMessageID: "ABC"}
	created, err := r.messages.Create(ctx, m1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, m1.ID)

	m2 := &domain.Message{ConversationID: 1, Content: "oi", IsFromContact: true, Type: domain.MessageText, GatewayMessageID: "ABC"}
	created, err = r.messages.Create(ctx, m2)
	require.NoError(t, err)
	assert.False(t, created)

	// rows without a gateway id never collide
	for i := 0; i < 2; i++ {
		created, err = r.messages.Create(ctx, &domain.Message{ConversationID: 1, Content: "out", Type: domain.MessageText})
		require.NoError(t, err)
		assert.True(t, created)
	}
}

func TestMessageAttachGatewayID(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	out := &domain.Message{ConversationID: 1, Content: "olá", Type: domain.MessageText, CorrelationID: "corr-1"}
	_, err := r.messages.Create(ctx, out)
	require.NoError(t, err)

	require.NoError(t, r.messages.AttachGatewayID(ctx, "corr-1", "GW1"))
	got, err := r.messages.FindByGatewayID(ctx, "GW1")
	require.NoError(t, err)
	assert.Equal(t, out.ID, got.ID)

	assert.ErrorIs(t, r.messages.AttachGatewayID(ctx, "corr-1", "GW2"), domain.ErrMessageNotFound)

	echo := &domain.Message{ConversationID: 1, Content: "olá", Type: domain.MessageText, GatewayMessageID: "GW3"}
	_, err = r.messages.Create(ctx, echo)
	require.NoError(t, err)
	second := &domain.Message{ConversationID: 1, Content: "olá", Type: domain.MessageText, CorrelationID: "corr-2"}
	_, err = r.messages.Create(ctx, second)
	require.NoError(t, err)
	assert.ErrorIs(t, r.messages.AttachGatewayID(ctx, "corr-2", "GW3"), ErrDuplicateGatewayID)
}

func TestMessageMarkDelivery_OnlyListedIDs(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		_, err := r.messages.Create(ctx, &domain.Message{ConversationID: 1, Content: id, Type: domain.MessageText, GatewayMessageID: id})
		require.NoError(t, err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	n, err := r.messages.MarkDelivery(ctx, []string{"A", "B"}, domain.DeliveryDelivered, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.messages.MarkDelivery(ctx, []string{"B"}, domain.DeliveryRead, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, _ := r.messages.FindByGatewayID(ctx, "A")
	b, _ := r.messages.FindByGatewayID(ctx, "B")
	c, _ := r.messages.FindByGatewayID(ctx, "C")
	assert.NotNil(t, a.DeliveredAt)
	assert.Nil(t, a.ReadAt)
	assert.NotNil(t, b.ReadAt)
	assert.Nil(t, c.DeliveredAt)
	assert.Nil(t, c.ReadAt)

	n, err = r.messages.MarkDelivery(ctx, nil, domain.DeliveryRead, at)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMessageSoftDeleteAndListRecent(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	var ids []uint
	for i, body := range []string{"um", "dois", "três"} {
		m := &domain.Message{ConversationID: 5, Content: body, Type: domain.MessageText, IsFromContact: i%2 == 0, SentAt: base.Add(time.Duration(i) * time.Minute)}
		_, err := r.messages.Create(ctx, m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	deleted, err := r.messages.SoftDelete(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	_, err = r.messages.SoftDelete(ctx, ids[1])
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	recent, err := r.messages.ListRecent(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "um", recent[0].Content)
	assert.Equal(t, "três", recent[1].Content)

	outbound, err := r.messages.RecentOutboundContents(ctx, 5, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, outbound)
}

func TestMessageMergeMetadata(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	m := &domain.Message{ConversationID: 1, Content: "x", Type: domain.MessageImage, Metadata: map[string]any{domain.MetaMediaURL: "http://a"}}
	_, err := r.messages.Create(ctx, m)
	require.NoError(t, err)

	require.NoError(t, r.messages.MergeMetadata(ctx, m.ID, map[string]any{domain.MetaSendError: "timeout"}))
	got, err := r.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://a", got.Metadata[domain.MetaMediaURL])
	assert.Equal(t, "timeout", got.Metadata[domain.MetaSendError])
}
