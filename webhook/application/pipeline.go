package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	channels "github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/domains/realtime"
	guard "github.com/eduzayn/educhat/guard/domain"
	inboxApp "github.com/eduzayn/educhat/inbox/application"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/pkg/msgworker"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/eduzayn/educhat/webhook/domain"
	"github.com/sirupsen/logrus"
)

type ChannelResolver interface {
	ForWebhook(ctx context.Context, channelID *uint, instanceID string) *channels.Channel
	MarkConnection(ctx context.Context, instanceID string, connected bool) (*channels.Channel, error)
}

type Inbox interface {
	UpsertContact(ctx context.Context, rawPhone, name, avatar string) (*inbox.Contact, bool, error)
	RefreshAvatar(ctx context.Context, contact *inbox.Contact, avatar string) error
	UpsertConversation(ctx context.Context, contactID uint, channelInstanceID *uint) (*inbox.Conversation, bool, error)
	RecordInbound(ctx context.Context, conv *inbox.Conversation, msg *inbox.Message) (bool, error)
	RecordOutbound(ctx context.Context, conv *inbox.Conversation, msg *inbox.Message) (bool, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*inbox.Message, error)
	ApplyDelivery(ctx context.Context, gatewayIDs []string, status inbox.DeliveryStatus, at time.Time) (int64, error)
}

type Guard interface {
	Check(ctx context.Context, msg *inbox.Message) (guard.Verdict, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, job AnalysisJob) error
}

type Dispatcher interface {
	TryDispatch(job msgworker.Job) bool
}

type PresenceRecorder interface {
	Update(instanceID, phone, state string)
}

// Pipeline turns one gateway webhook delivery into registry writes and a
// deferred analysis job.
type Pipeline struct {
	channels   ChannelResolver
	inbox      Inbox
	guard      Guard
	analyzer   Analyzer
	dispatcher Dispatcher
	dedup      domain.Deduper
	dedupTTL   time.Duration
	publisher  realtime.Publisher
	presence   PresenceRecorder
}

type PipelineDeps struct {
	Channels   ChannelResolver
	Inbox      Inbox
	Guard      Guard
	Analyzer   Analyzer
	Dispatcher Dispatcher
	Dedup      domain.Deduper
	DedupTTL   time.Duration
	Publisher  realtime.Publisher
	Presence   PresenceRecorder
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		channels:   deps.Channels,
		inbox:      deps.Inbox,
		guard:      deps.Guard,
		analyzer:   deps.Analyzer,
		dispatcher: deps.Dispatcher,
		dedup:      deps.Dedup,
		dedupTTL:   deps.DedupTTL,
		publisher:  deps.Publisher,
		presence:   deps.Presence,
	}
	if p.publisher == nil {
		p.publisher = realtime.Nop{}
	}
	if p.dedupTTL <= 0 {
		p.dedupTTL = 10 * time.Minute
	}
	return p
}

// Handle processes a raw webhook body. The result is always acknowledged
// to the gateway; failures are logged here and reported as type "error".
func (p *Pipeline) Handle(ctx context.Context, body []byte, channelID *uint) domain.Result {
	start := time.Now()

	env, err := domain.Parse(body)
	if err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Rejected payload (%d bytes)", len(body))
		return domain.Result{Success: true, Type: domain.ResultMalformed}
	}
	if !env.Known() {
		logrus.Debugf("[WEBHOOK] Ignoring callback type %q", env.Type)
		return domain.Result{Success: true, Type: domain.ResultIgnored}
	}
	if err := env.Validate(); err != nil {
		logrus.WithError(err).Warn("[WEBHOOK] Invalid callback")
		return domain.Result{Success: true, Type: domain.ResultMalformed}
	}

	var res domain.Result
	switch env.Type {
	case domain.ReceivedCallback:
		res, err = p.handleReceived(ctx, env, channelID)
	case domain.MessageStatusCallback:
		res, err = p.handleStatus(ctx, env)
	case domain.PresenceChatCallback:
		res = p.handlePresence(ctx, env)
	case domain.ConnectedCallback, domain.DisconnectedCallback:
		res, err = p.handleConnection(ctx, env)
	}

	fields := logrus.Fields{
		"type":     env.Type,
		"phone":    utils.MaskPhone(env.Phone),
		"duration": time.Since(start).String(),
	}
	if err != nil {
		logrus.WithFields(fields).WithError(err).Error("[WEBHOOK] Processing failed")
		return domain.Result{Success: true, Type: domain.ResultError}
	}
	logrus.WithFields(fields).Debugf("[WEBHOOK] %s %s", res.Type, res.Status)
	res.Success = true
	return res
}

func (p *Pipeline) handleReceived(ctx context.Context, env *domain.Envelope, channelID *uint) (res domain.Result, err error) {
	if env.IsGroup || env.IsNewsletter || env.Broadcast {
		return domain.Result{Type: domain.ResultIgnored}, nil
	}

	if env.MessageID != "" && p.dedup != nil {
		key := env.InstanceID + ":" + env.MessageID
		claimed, derr := p.dedup.Claim(ctx, key, p.dedupTTL)
		switch {
		case derr != nil:
			logrus.WithError(derr).Warn("[WEBHOOK] Dedup store unavailable, relying on the message index")
		case !claimed:
			return domain.Result{Type: domain.ResultDuplicate}, nil
		default:
			defer func() {
				if err != nil {
					if rerr := p.dedup.Release(context.WithoutCancel(ctx), key); rerr != nil {
						logrus.WithError(rerr).Warnf("[WEBHOOK] Failed to release dedup key %s", key)
					}
				}
			}()
		}
	}

	var instanceID *uint
	if ch := p.channels.ForWebhook(ctx, channelID, env.InstanceID); ch != nil {
		instanceID = &ch.ID
	}

	if env.FromMe {
		return p.handleEcho(ctx, env, instanceID)
	}

	name := env.SenderName
	if name == "" {
		name = env.ChatName
	}
	contact, _, err := p.inbox.UpsertContact(ctx, env.Phone, name, env.Avatar())
	if err != nil {
		return res, fmt.Errorf("upsert contact: %w", err)
	}
	if avatar := env.Avatar(); avatar != "" && avatar != contact.Avatar {
		if err := p.inbox.RefreshAvatar(ctx, contact, avatar); err != nil {
			logrus.WithError(err).Warnf("[WEBHOOK] Avatar refresh failed for contact %d", contact.ID)
		}
	}

	conv, _, err := p.inbox.UpsertConversation(ctx, contact.ID, instanceID)
	if err != nil {
		return res, fmt.Errorf("upsert conversation: %w", err)
	}

	msg := p.buildMessage(env)
	if env.SenderName != "" {
		msg.Metadata[inbox.MetaSenderName] = env.SenderName
	}
	stored, err := p.inbox.RecordInbound(ctx, conv, msg)
	if err != nil {
		return res, fmt.Errorf("record inbound: %w", err)
	}
	if !stored {
		return domain.Result{Type: domain.ResultDuplicate}, nil
	}

	verdict, gerr := p.guard.Check(ctx, msg)
	if gerr != nil {
		logrus.WithError(gerr).Warnf("[WEBHOOK] Guard check failed for message %d", msg.ID)
	}
	if verdict.Blocked {
		return domain.Result{Type: domain.ResultMessageReceived, Status: domain.StatusBlocked, MessageID: msg.ID}, nil
	}

	if text := strings.TrimSpace(msg.Text()); text != "" {
		p.dispatch(AnalysisJob{
			MessageID:      msg.ID,
			ConversationID: conv.ID,
			ContactID:      contact.ID,
			Text:           text,
		})
	}
	return domain.Result{Type: domain.ResultMessageReceived, Status: domain.StatusStored, MessageID: msg.ID}, nil
}

// handleEcho stores a message the business typed on the phone. Echoes of
// messages sent through the API are already stored and are reported as
// duplicates.
func (p *Pipeline) handleEcho(ctx context.Context, env *domain.Envelope, instanceID *uint) (domain.Result, error) {
	if env.MessageID != "" {
		_, err := p.inbox.FindByGatewayID(ctx, env.MessageID)
		if err == nil {
			return domain.Result{Type: domain.ResultDuplicate}, nil
		}
		if !errors.Is(err, inbox.ErrMessageNotFound) {
			return domain.Result{}, fmt.Errorf("lookup echo: %w", err)
		}
	}

	contact, _, err := p.inbox.UpsertContact(ctx, env.Phone, env.ChatName, "")
	if err != nil {
		return domain.Result{}, fmt.Errorf("upsert contact: %w", err)
	}
	conv, _, err := p.inbox.UpsertConversation(ctx, contact.ID, instanceID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("upsert conversation: %w", err)
	}

	msg := p.buildMessage(env)
	msg.Metadata[inbox.MetaSource] = inboxApp.SourcePhoneEcho
	stored, err := p.inbox.RecordOutbound(ctx, conv, msg)
	if err != nil {
		return domain.Result{}, fmt.Errorf("record echo: %w", err)
	}
	if !stored {
		return domain.Result{Type: domain.ResultDuplicate}, nil
	}
	return domain.Result{Type: domain.ResultMessageReceived, Status: domain.StatusOutboundEcho, MessageID: msg.ID}, nil
}

func (p *Pipeline) buildMessage(env *domain.Envelope) *inbox.Message {
	draft := Normalize(env)
	meta := draft.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &inbox.Message{
		Content:          draft.Content,
		Type:             draft.Type,
		Metadata:         meta,
		GatewayMessageID: env.MessageID,
		SentAt:           momentTime(env.Moment),
	}
}

func (p *Pipeline) dispatch(job AnalysisJob) {
	if p.analyzer == nil || p.dispatcher == nil {
		return
	}
	ok := p.dispatcher.TryDispatch(msgworker.Job{
		Key:  fmt.Sprintf("conv:%d", job.ConversationID),
		Name: "analyze_message",
		Handler: func(ctx context.Context) error {
			return p.analyzer.Analyze(ctx, job)
		},
	})
	if !ok {
		logrus.Warnf("[WEBHOOK] Worker queue full, skipping analysis of message %d", job.MessageID)
	}
}

func (p *Pipeline) handleStatus(ctx context.Context, env *domain.Envelope) (domain.Result, error) {
	res := domain.Result{Type: domain.ResultStatusUpdate}
	if len(env.IDs) == 0 {
		return res, nil
	}
	var status inbox.DeliveryStatus
	switch strings.ToUpper(env.Status) {
	case "RECEIVED", "DELIVERED":
		status = inbox.DeliveryDelivered
	case "READ", "READ_BY_ME", "PLAYED":
		status = inbox.DeliveryRead
	default:
		return res, nil
	}
	if _, err := p.inbox.ApplyDelivery(ctx, env.IDs, status, momentTime(env.Moment)); err != nil {
		return res, fmt.Errorf("apply delivery status: %w", err)
	}
	return res, nil
}

func (p *Pipeline) handlePresence(ctx context.Context, env *domain.Envelope) domain.Result {
	phone := utils.NormalizePhone(env.Phone)
	if p.presence != nil {
		p.presence.Update(env.InstanceID, phone, env.Status)
	}
	p.publisher.Publish(ctx, realtime.Event{
		Type: realtime.EventPresenceUpdate,
		Payload: map[string]any{
			"phone":       phone,
			"status":      env.Status,
			"instance_id": env.InstanceID,
		},
	})
	return domain.Result{Type: domain.ResultPresence}
}

func (p *Pipeline) handleConnection(ctx context.Context, env *domain.Envelope) (domain.Result, error) {
	res := domain.Result{Type: domain.ResultConnectionUpdate}
	connected := env.Type == domain.ConnectedCallback
	if _, err := p.channels.MarkConnection(ctx, env.InstanceID, connected); err != nil {
		if errors.Is(err, channels.ErrChannelNotFound) {
			logrus.Warnf("[WEBHOOK] Connection callback for unknown instance %s", env.InstanceID)
			return res, nil
		}
		return res, fmt.Errorf("mark connection: %w", err)
	}
	return res, nil
}

// momentTime reads the gateway timestamp, which is in milliseconds but
// occasionally arrives in seconds.
func momentTime(moment int64) time.Time {
	switch {
	case moment <= 0:
		return time.Now().UTC()
	case moment < 1e12:
		return time.Unix(moment, 0).UTC()
	default:
		return time.UnixMilli(moment).UTC()
	}
}
