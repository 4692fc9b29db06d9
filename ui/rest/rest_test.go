package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eduzayn/educhat/core/rules"
	domainSend "github.com/eduzayn/educhat/domains/send"
	handoffApp "github.com/eduzayn/educhat/handoff/application"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/infrastructure/gateway"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/eduzayn/educhat/ui/rest/middleware"
	"github.com/eduzayn/educhat/validations"
	"github.com/eduzayn/educhat/webhook/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.Recovery())
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, utils.ResponseData) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out utils.ResponseData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

type fakePipeline struct {
	body      []byte
	channelID *uint
}

func (f *fakePipeline) Handle(ctx context.Context, body []byte, channelID *uint) domain.Result {
	f.body = body
	f.channelID = channelID
	return domain.Result{Success: true, Type: domain.ResultMalformed}
}

func TestWebhook_AlwaysOKAndPassesChannel(t *testing.T) {
	app := newApp()
	pipeline := &fakePipeline{}
	InitRestWebhook(app, pipeline)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/7", bytes.NewBufferString(`{"type":`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result domain.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, domain.ResultMalformed, result.Type)
	require.NotNil(t, pipeline.channelID)
	assert.Equal(t, uint(7), *pipeline.channelID)
	assert.Equal(t, `{"type":`, string(pipeline.body))

	req = httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewBufferString(`{}`))
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Nil(t, pipeline.channelID)
}

type fakeSender struct {
	domainSend.ISendUsecase
	err error
}

func (f fakeSender) SendText(ctx context.Context, request domainSend.MessageRequest) (domainSend.GenericResponse, error) {
	if err := validations.ValidateSendMessage(ctx, request); err != nil {
		return domainSend.GenericResponse{}, err
	}
	if f.err != nil {
		return domainSend.GenericResponse{MessageID: 1}, f.err
	}
	return domainSend.GenericResponse{MessageID: 1, GatewayID: "3EB0", Status: "Message sent"}, nil
}

func TestSend_ErrorsUseEnvelope(t *testing.T) {
	app := newApp()
	InitRestSend(app, fakeSender{}, t.TempDir())

	status, body := do(t, app, http.MethodPost, "/send/message", map[string]any{"phone": "5511999990000"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	status, body = do(t, app, http.MethodPost, "/send/message", map[string]any{"phone": "5511999990000", "message": "oi"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Message sent", body.Message)

	app = newApp()
	InitRestSend(app, fakeSender{err: &gateway.SendFailure{Op: "send-text", Status: 500}}, t.TempDir())
	status, body = do(t, app, http.MethodPost, "/send/message", map[string]any{"phone": "5511999990000", "message": "oi"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "GATEWAY_SEND_FAILURE", body.Code)
}

type fakeInbox struct {
	deleted uint
}

func (f *fakeInbox) GetContact(ctx context.Context, id uint) (*inbox.Contact, error) {
	return nil, inbox.ErrContactNotFound
}

func (f *fakeInbox) GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error) {
	if id == 1 {
		return &inbox.Conversation{ID: 1, ContactID: 10}, nil
	}
	return nil, inbox.ErrConversationNotFound
}

func (f *fakeInbox) ListConversations(ctx context.Context, filter inbox.ConversationFilter) ([]*inbox.Conversation, error) {
	return []*inbox.Conversation{{ID: 1}}, nil
}

func (f *fakeInbox) History(ctx context.Context, conversationID uint, limit int) ([]*inbox.Message, error) {
	return []*inbox.Message{{ID: 5, ConversationID: conversationID, Content: "oi"}}, nil
}

func (f *fakeInbox) DeleteMessage(ctx context.Context, id uint) (*inbox.Message, error) {
	f.deleted = id
	return &inbox.Message{ID: id, IsDeleted: true}, nil
}

func TestInbox_NotFoundAndDelete(t *testing.T) {
	app := newApp()
	fake := &fakeInbox{}
	InitRestInbox(app, fake, nil, nil, nil)

	status, body := do(t, app, http.MethodGet, "/conversations/99/messages", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND_ERROR", body.Code)

	status, _ = do(t, app, http.MethodGet, "/conversations/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodGet, "/conversations/1/messages", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodGet, "/contacts/3/presence", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodDelete, "/messages/5", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint(5), fake.deleted)
}

type fakeHandoff struct {
	HandoffService
	got  handoffApp.ManualRequest
	team *handoff.Team
}

func (f *fakeHandoff) CreateTeam(ctx context.Context, t *handoff.Team) error {
	t.ID = 4
	f.team = t
	return nil
}

func (f *fakeHandoff) ExecuteManual(ctx context.Context, conversationID uint, req handoffApp.ManualRequest) (*handoff.Handoff, error) {
	f.got = req
	return &handoff.Handoff{ID: 3, ConversationID: conversationID, Type: req.Type, Status: handoff.StatusCompleted}, nil
}

func TestHandoff_ValidatesManualRequest(t *testing.T) {
	app := newApp()
	svc := &fakeHandoff{}
	InitRestHandoff(app, svc, nil, &fakeInbox{}, rules.Default())

	status, body := do(t, app, http.MethodPost, "/conversations/1/handoff", map[string]any{"type": "automatic", "team_id": 2})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	status, _ = do(t, app, http.MethodPost, "/conversations/99/handoff", map[string]any{"type": "manual", "team_id": 2})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPost, "/conversations/1/handoff", map[string]any{"type": "corrected_redistribution", "team_id": 2, "reason": "setor errado"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, handoff.TypeCorrectedRedistribution, svc.got.Type)
	require.NotNil(t, svc.got.TeamID)
	assert.Equal(t, uint(2), *svc.got.TeamID)
}

func TestHandoff_CreateTeamRequiresKnownMacrosetor(t *testing.T) {
	app := newApp()
	svc := &fakeHandoff{}
	InitRestHandoff(app, svc, nil, &fakeInbox{}, rules.Default())

	status, body := do(t, app, http.MethodPost, "/teams", map[string]any{"name": "Vendas", "macrosetor": "vendas"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Nil(t, svc.team)

	status, _ = do(t, app, http.MethodPost, "/teams", map[string]any{"name": "Comercial", "macrosetor": "comercial"})
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.team)
	assert.Equal(t, "comercial", svc.team.Macrosetor)
	assert.True(t, svc.team.Active)
}
