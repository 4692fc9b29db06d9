package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduzayn/educhat/domains/realtime"
	"github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/inbox/repository"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/sirupsen/logrus"
)

// SourcePhoneEcho marks outbound messages typed on the phone and received back
// through the webhook.
const SourcePhoneEcho = "phone_echo"

// Registry owns contacts, conversations and messages and announces every
// change it makes on the realtime publisher.
type Registry struct {
	contacts      domain.ContactRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	publisher     realtime.Publisher
}

func NewRegistry(contacts domain.ContactRepository, conversations domain.ConversationRepository, messages domain.MessageRepository, publisher realtime.Publisher) *Registry {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &Registry{
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
	}
}

// UpsertContact normalizes the phone and returns the single contact for it.
func (r *Registry) UpsertContact(ctx context.Context, rawPhone, name, avatar string) (*domain.Contact, bool, error) {
	phone := utils.NormalizePhone(rawPhone)
	if phone == "" {
		return nil, false, domain.ErrInvalidPhone
	}
	if name == "" {
		name = "WhatsApp " + phone
	}
	contact, created, err := r.contacts.Upsert(ctx, &domain.Contact{
		Name:   name,
		Phone:  phone,
		Origin: domain.ChannelWhatsApp,
		Avatar: avatar,
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert contact %s: %w", utils.MaskPhone(phone), err)
	}
	if created {
		logrus.Infof("[REGISTRY] New contact %d for %s", contact.ID, utils.MaskPhone(phone))
	}
	return contact, created, nil
}

// RefreshAvatar stores a newer profile picture URL when it differs.
func (r *Registry) RefreshAvatar(ctx context.Context, contact *domain.Contact, avatar string) error {
	if avatar == "" || avatar == contact.Avatar {
		return nil
	}
	if err := r.contacts.UpdateAvatar(ctx, contact.ID, avatar); err != nil {
		return err
	}
	contact.Avatar = avatar
	return nil
}

func (r *Registry) AddContactTags(ctx context.Context, contactID uint, tags ...string) error {
	return r.contacts.AddTags(ctx, contactID, tags...)
}

func (r *Registry) GetContact(ctx context.Context, id uint) (*domain.Contact, error) {
	return r.contacts.GetByID(ctx, id)
}

// UpsertConversation returns the contact's WhatsApp conversation, creating it
// or repairing its channel attribution as needed.
func (r *Registry) UpsertConversation(ctx context.Context, contactID uint, channelInstanceID *uint) (*domain.Conversation, bool, error) {
	conv, created, repaired, err := r.conversations.Upsert(ctx, contactID, domain.ChannelWhatsApp, channelInstanceID)
	if err != nil {
		return nil, false, fmt.Errorf("upsert conversation for contact %d: %w", contactID, err)
	}
	if repaired {
		logrus.Infof("[REGISTRY] Conversation %d attributed to channel %d", conv.ID, *channelInstanceID)
		r.publishConversation(ctx, conv.ID)
	}
	return conv, created, nil
}

func (r *Registry) GetConversation(ctx context.Context, id uint) (*domain.Conversation, error) {
	return r.conversations.GetByID(ctx, id)
}

func (r *Registry) ListConversations(ctx context.Context, filter domain.ConversationFilter) ([]*domain.Conversation, error) {
	return r.conversations.List(ctx, filter)
}

func (r *Registry) SetMacrosetor(ctx context.Context, conversationID uint, macrosetor string) error {
	if err := r.conversations.SetMacrosetor(ctx, conversationID, macrosetor); err != nil {
		return err
	}
	r.publishConversation(ctx, conversationID)
	return nil
}

// RecordInbound stores a contact message. It returns false, without side
// effects, when the gateway id was already stored.
func (r *Registry) RecordInbound(ctx context.Context, conv *domain.Conversation, msg *domain.Message) (bool, error) {
	msg.ConversationID = conv.ID
	msg.IsFromContact = true
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	created, err := r.messages.Create(ctx, msg)
	if err != nil || !created {
		return created, err
	}
	if err := r.conversations.TouchInbound(ctx, conv.ID, preview(msg), msg.SentAt); err != nil {
		return true, fmt.Errorf("touch conversation %d: %w", conv.ID, err)
	}
	r.publishMessage(ctx, msg)
	r.publishConversation(ctx, conv.ID)
	return true, nil
}

// RecordOutbound stores an agent, bot or phone-echo message.
func (r *Registry) RecordOutbound(ctx context.Context, conv *domain.Conversation, msg *domain.Message) (bool, error) {
	msg.ConversationID = conv.ID
	msg.IsFromContact = false
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	created, err := r.messages.Create(ctx, msg)
	if err != nil || !created {
		return created, err
	}
	if err := r.conversations.TouchOutbound(ctx, conv.ID, preview(msg), msg.SentAt); err != nil {
		return true, fmt.Errorf("touch conversation %d: %w", conv.ID, err)
	}
	r.publishMessage(ctx, msg)
	r.publishConversation(ctx, conv.ID)
	return true, nil
}

// AttachGatewayID links an outbound message to the id the gateway assigned.
// If the phone echo already landed as its own row, that duplicate is removed.
func (r *Registry) AttachGatewayID(ctx context.Context, correlationID, gatewayID string) error {
	err := r.messages.AttachGatewayID(ctx, correlationID, gatewayID)
	if !errors.Is(err, repository.ErrDuplicateGatewayID) {
		return err
	}

	echo, ferr := r.messages.FindByGatewayID(ctx, gatewayID)
	if ferr != nil {
		return ferr
	}
	if echo.IsFromContact || echo.Metadata[domain.MetaSource] != SourcePhoneEcho {
		return err
	}
	if serr := r.messages.SupersedeEcho(ctx, echo.ID, correlationID, gatewayID); serr != nil {
		return serr
	}
	r.publisher.Publish(ctx, realtime.Event{
		Type:           realtime.EventMessageDeleted,
		ConversationID: echo.ConversationID,
		Payload:        map[string]any{"message_id": echo.ID},
	})
	return nil
}

// MarkSendFailed records a gateway failure on the stored outbound message.
func (r *Registry) MarkSendFailed(ctx context.Context, messageID uint, reason string) error {
	return r.messages.MergeMetadata(ctx, messageID, map[string]any{domain.MetaSendError: reason})
}

func (r *Registry) FindByGatewayID(ctx context.Context, gatewayID string) (*domain.Message, error) {
	return r.messages.FindByGatewayID(ctx, gatewayID)
}

// DeleteMessage soft-deletes a message and announces it.
func (r *Registry) DeleteMessage(ctx context.Context, id uint) (*domain.Message, error) {
	msg, err := r.messages.SoftDelete(ctx, id)
	if err != nil {
		return nil, err
	}
	r.publisher.Publish(ctx, realtime.Event{
		Type:           realtime.EventMessageDeleted,
		ConversationID: msg.ConversationID,
		Payload:        map[string]any{"message_id": msg.ID},
	})
	return msg, nil
}

// ApplyDelivery moves delivery timestamps for the listed gateway ids only.
func (r *Registry) ApplyDelivery(ctx context.Context, gatewayIDs []string, status domain.DeliveryStatus, at time.Time) (int64, error) {
	n, err := r.messages.MarkDelivery(ctx, gatewayIDs, status, at)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logrus.Debugf("[REGISTRY] %d message(s) marked %s", n, status)
	}
	return n, nil
}

func (r *Registry) History(ctx context.Context, conversationID uint, limit int) ([]*domain.Message, error) {
	return r.messages.ListRecent(ctx, conversationID, limit)
}

func (r *Registry) RecentOutbound(ctx context.Context, conversationID uint, since time.Time) ([]string, error) {
	return r.messages.RecentOutboundContents(ctx, conversationID, since)
}

func (r *Registry) publishMessage(ctx context.Context, msg *domain.Message) {
	r.publisher.Publish(ctx, realtime.Event{
		Type:           realtime.EventNewMessage,
		ConversationID: msg.ConversationID,
		Payload:        msg,
	})
}

func (r *Registry) publishConversation(ctx context.Context, conversationID uint) {
	conv, err := r.conversations.GetByID(ctx, conversationID)
	if err != nil {
		logrus.WithError(err).Warnf("[REGISTRY] Failed to reload conversation %d for broadcast", conversationID)
		return
	}
	r.publisher.Publish(ctx, realtime.Event{
		Type:           realtime.EventConversationUpdated,
		ConversationID: conv.ID,
		Payload:        conv,
	})
}

func preview(msg *domain.Message) string {
	if text := msg.Text(); text != "" {
		return text
	}
	return msg.Content
}
