package usecase

import (
	"context"
	"errors"
	"image/color"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	channelApp "github.com/eduzayn/educhat/channels/application"
	channels "github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/domains/realtime"
	domainSend "github.com/eduzayn/educhat/domains/send"
	inboxApp "github.com/eduzayn/educhat/inbox/application"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/inbox/repository"
	"github.com/eduzayn/educhat/infrastructure/gateway"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/linkpreview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubResolver struct {
	res channelApp.Resolution
	err error
}

func (s stubResolver) ForSend(ctx context.Context, channelID *uint) (channelApp.Resolution, error) {
	return s.res, s.err
}

type sentCall struct {
	Op      string
	Phone   string
	Payload string
	Caption string
	Link    gateway.LinkMessage
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []sentCall
	id    string
	err   error
}

func (f *fakeGateway) record(c sentCall) (gateway.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return gateway.SendResult{}, f.err
	}
	return gateway.SendResult{ZaapID: "z-" + f.id, MessageID: f.id}, nil
}

func (f *fakeGateway) SendText(ctx context.Context, creds gateway.Credentials, phone, message string) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "text", Phone: phone, Payload: message})
}

func (f *fakeGateway) SendImage(ctx context.Context, creds gateway.Credentials, phone, image, caption string) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "image", Phone: phone, Payload: image, Caption: caption})
}

func (f *fakeGateway) SendAudio(ctx context.Context, creds gateway.Credentials, phone, audio string) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "audio", Phone: phone, Payload: audio})
}

func (f *fakeGateway) SendVideo(ctx context.Context, creds gateway.Credentials, phone, video, caption string) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "video", Phone: phone, Payload: video, Caption: caption})
}

func (f *fakeGateway) SendDocument(ctx context.Context, creds gateway.Credentials, phone, document, extension, fileName string) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "document/" + extension, Phone: phone, Payload: document, Caption: fileName})
}

func (f *fakeGateway) SendLink(ctx context.Context, creds gateway.Credentials, phone string, link gateway.LinkMessage) (gateway.SendResult, error) {
	return f.record(sentCall{Op: "link", Phone: phone, Link: link})
}

var testResolution = channelApp.Resolution{
	Credentials: gateway.Credentials{InstanceID: "inst-1", Token: "tok", ClientToken: "ct"},
	Source:      channelApp.SourceEnv,
}

func newSendHarness(t *testing.T, gw *fakeGateway, resolver CredentialResolver) (domainSend.ISendUsecase, *inboxApp.Registry) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	contacts := repository.NewContactGormRepository(db)
	conversations := repository.NewConversationGormRepository(db)
	messages := repository.NewMessageGormRepository(db)
	ctx := context.Background()
	require.NoError(t, contacts.InitSchema(ctx))
	require.NoError(t, conversations.InitSchema(ctx))
	require.NoError(t, messages.InitSchema(ctx))

	registry := inboxApp.NewRegistry(contacts, conversations, messages, realtime.Nop{})
	preview := func(ctx context.Context, link string) (linkpreview.Preview, error) {
		return linkpreview.Preview{Title: "Cursos", Description: "Inscrições abertas", ImageURL: "https://img.example.com/c.png"}, nil
	}
	return NewSendService(resolver, registry, gw, preview), registry
}

func TestSendText_CorrelatesGatewayID(t *testing.T) {
	gw := &fakeGateway{id: "3EB0AAA"}
	svc, registry := newSendHarness(t, gw, stubResolver{res: testResolution})
	ctx := context.Background()

	resp, err := svc.SendText(ctx, domainSend.MessageRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "+55 (11) 99999-0000"},
		Message:     "Olá! Segue o link da matrícula.",
	})
	require.NoError(t, err)
	assert.Equal(t, "3EB0AAA", resp.GatewayID)
	assert.NotEmpty(t, resp.CorrelationID)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, "5511999990000", gw.calls[0].Phone)

	stored, err := registry.FindByGatewayID(ctx, "3EB0AAA")
	require.NoError(t, err)
	assert.Equal(t, resp.MessageID, stored.ID)
	assert.Equal(t, resp.CorrelationID, stored.CorrelationID)
	assert.False(t, stored.IsFromContact)
}

func TestSendText_ByConversation(t *testing.T) {
	gw := &fakeGateway{id: "3EB0BBB"}
	svc, registry := newSendHarness(t, gw, stubResolver{res: testResolution})
	ctx := context.Background()

	contact, _, err := registry.UpsertContact(ctx, "5511988887777", "Ana", "")
	require.NoError(t, err)
	conv, _, err := registry.UpsertConversation(ctx, contact.ID, nil)
	require.NoError(t, err)

	resp, err := svc.SendText(ctx, domainSend.MessageRequest{
		BaseRequest: domainSend.BaseRequest{ConversationID: conv.ID, SenderName: "Atendente"},
		Message:     "Bom dia, Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, resp.ConversationID)
	assert.Equal(t, "5511988887777", gw.calls[0].Phone)

	history, err := registry.History(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Atendente", history[0].Metadata[inbox.MetaSenderName])
}

func TestSendText_GatewayFailureIsRecorded(t *testing.T) {
	failure := &gateway.SendFailure{Op: "send-text", Status: 500, Body: "boom"}
	gw := &fakeGateway{err: failure}
	svc, registry := newSendHarness(t, gw, stubResolver{res: testResolution})
	ctx := context.Background()

	resp, err := svc.SendText(ctx, domainSend.MessageRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		Message:     "teste",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrSendFailure))

	history, err := registry.History(ctx, resp.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Metadata[inbox.MetaSendError], "status=500")
	assert.Empty(t, history[0].GatewayMessageID)
}

func TestSendText_ValidationAndResolverErrors(t *testing.T) {
	gw := &fakeGateway{id: "x"}
	svc, _ := newSendHarness(t, gw, stubResolver{err: channels.CredentialsUnavailable("no default channel and no environment credentials")})
	ctx := context.Background()

	_, err := svc.SendText(ctx, domainSend.MessageRequest{BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"}})
	var validationErr pkgError.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.SendText(ctx, domainSend.MessageRequest{Message: "oi"})
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.SendText(ctx, domainSend.MessageRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		Message:     "oi",
	})
	assert.ErrorIs(t, err, channels.ErrCredentialsUnavailable)
	var generic pkgError.GenericError
	require.ErrorAs(t, err, &generic)
	assert.Equal(t, "CREDENTIALS_UNAVAILABLE", generic.ErrCode())

	assert.Empty(t, gw.calls)
}

func TestSendLink_UsesPreview(t *testing.T) {
	gw := &fakeGateway{id: "3EB0LINK"}
	svc, _ := newSendHarness(t, gw, stubResolver{res: testResolution})

	_, err := svc.SendLink(context.Background(), domainSend.LinkRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		Link:        "https://cursos.example.com/pos",
		Caption:     "Confira",
	})
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)
	link := gw.calls[0].Link
	assert.Equal(t, "https://cursos.example.com/pos", link.LinkURL)
	assert.Equal(t, "Cursos", link.Title)
	assert.Equal(t, "Confira\nhttps://cursos.example.com/pos", link.Message)
	assert.Equal(t, "https://img.example.com/c.png", link.Image)
}

func TestSendFile_ExtensionFromName(t *testing.T) {
	gw := &fakeGateway{id: "3EB0DOC"}
	svc, _ := newSendHarness(t, gw, stubResolver{res: testResolution})

	_, err := svc.SendFile(context.Background(), domainSend.FileRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		FileURL:     "https://files.example.com/edital.pdf?sig=abc",
	})
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)
	assert.Equal(t, "document/pdf", gw.calls[0].Op)
	assert.Equal(t, "edital.pdf", gw.calls[0].Caption)
}

func TestSendImage_UploadIsResizedAndRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.png")
	require.NoError(t, imaging.Save(imaging.New(1200, 400, color.NRGBA{R: 200, A: 255}), path))

	gw := &fakeGateway{id: "3EB0IMG"}
	svc, _ := newSendHarness(t, gw, stubResolver{res: testResolution})
	_, err := svc.SendImage(context.Background(), domainSend.ImageRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		Image:       &multipart.FileHeader{Filename: "banner.png"},
		ImagePath:   path,
		Caption:     "Novo curso",
		Compress:    true,
	})
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)
	assert.True(t, strings.HasPrefix(gw.calls[0].Payload, "data:image/jpeg;base64,"))
	assert.Equal(t, "Novo curso", gw.calls[0].Caption)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSendImage_URLPassesThrough(t *testing.T) {
	gw := &fakeGateway{id: "3EB0URL"}
	svc, _ := newSendHarness(t, gw, stubResolver{res: testResolution})

	_, err := svc.SendImage(context.Background(), domainSend.ImageRequest{
		BaseRequest: domainSend.BaseRequest{Phone: "5511999990000"},
		ImageURL:    "https://img.example.com/banner.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/banner.jpg", gw.calls[0].Payload)
}
