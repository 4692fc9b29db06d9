package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	channelApp "github.com/eduzayn/educhat/channels/application"
	domainSend "github.com/eduzayn/educhat/domains/send"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/infrastructure/gateway"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/linkpreview"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/eduzayn/educhat/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const (
	maxImageWidth      = 1600
	compressImageWidth = 600
	jpegQuality        = 80
)

// CredentialResolver picks the gateway instance for an outbound message.
type CredentialResolver interface {
	ForSend(ctx context.Context, channelID *uint) (channelApp.Resolution, error)
}

// Outbox is the part of the inbox registry the send path writes to.
type Outbox interface {
	UpsertContact(ctx context.Context, rawPhone, name, avatar string) (*inbox.Contact, bool, error)
	GetContact(ctx context.Context, id uint) (*inbox.Contact, error)
	UpsertConversation(ctx context.Context, contactID uint, channelInstanceID *uint) (*inbox.Conversation, bool, error)
	GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error)
	RecordOutbound(ctx context.Context, conv *inbox.Conversation, msg *inbox.Message) (bool, error)
	AttachGatewayID(ctx context.Context, correlationID, gatewayID string) error
	MarkSendFailed(ctx context.Context, messageID uint, reason string) error
}

// Gateway is the outbound surface of the gateway client.
type Gateway interface {
	SendText(ctx context.Context, creds gateway.Credentials, phone, message string) (gateway.SendResult, error)
	SendImage(ctx context.Context, creds gateway.Credentials, phone, image, caption string) (gateway.SendResult, error)
	SendAudio(ctx context.Context, creds gateway.Credentials, phone, audio string) (gateway.SendResult, error)
	SendVideo(ctx context.Context, creds gateway.Credentials, phone, video, caption string) (gateway.SendResult, error)
	SendDocument(ctx context.Context, creds gateway.Credentials, phone, document, extension, fileName string) (gateway.SendResult, error)
	SendLink(ctx context.Context, creds gateway.Credentials, phone string, link gateway.LinkMessage) (gateway.SendResult, error)
}

// LinkPreviewer returns page metadata for rich link messages.
type LinkPreviewer func(ctx context.Context, link string) (linkpreview.Preview, error)

type serviceSend struct {
	resolver CredentialResolver
	outbox   Outbox
	gateway  Gateway
	preview  LinkPreviewer
}

func NewSendService(resolver CredentialResolver, outbox Outbox, gw Gateway, preview LinkPreviewer) domainSend.ISendUsecase {
	if preview == nil {
		preview = linkpreview.Fetch
	}
	return &serviceSend{
		resolver: resolver,
		outbox:   outbox,
		gateway:  gw,
		preview:  preview,
	}
}

type sendFunc func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error)

// deliver stores msg under a fresh correlation id, sends it and stamps the
// gateway id on the stored row. A gateway failure is recorded on the row and
// returned unchanged.
func (service serviceSend) deliver(ctx context.Context, base domainSend.BaseRequest, msg *inbox.Message, send sendFunc) (response domainSend.GenericResponse, err error) {
	res, err := service.resolver.ForSend(ctx, base.ChannelID)
	if err != nil {
		return response, err
	}

	contact, conv, err := service.target(ctx, base, res.ChannelID)
	if err != nil {
		return response, err
	}

	msg.CorrelationID = uuid.NewString()
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	if base.SenderName != "" {
		msg.Metadata[inbox.MetaSenderName] = base.SenderName
	}
	if _, err = service.outbox.RecordOutbound(ctx, conv, msg); err != nil {
		return response, fmt.Errorf("record outbound message: %w", err)
	}

	response = domainSend.GenericResponse{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		CorrelationID:  msg.CorrelationID,
		ChannelID:      res.ChannelID,
	}

	result, err := send(ctx, res.Credentials, contact.Phone)
	if err != nil {
		if merr := service.outbox.MarkSendFailed(context.WithoutCancel(ctx), msg.ID, err.Error()); merr != nil {
			logrus.WithError(merr).Errorf("[SEND] Failed to record send failure on message %d", msg.ID)
		}
		logrus.WithFields(logrus.Fields{
			"phone":          utils.MaskPhone(contact.Phone),
			"message_id":     msg.ID,
			"correlation_id": msg.CorrelationID,
			"source":         res.Source,
		}).WithError(err).Warn("[SEND] Gateway send failed")
		return response, err
	}

	response.GatewayID = result.GatewayID()
	response.Status = fmt.Sprintf("Message sent to %s", utils.MaskPhone(contact.Phone))
	if response.GatewayID == "" {
		logrus.Warnf("[SEND] Gateway accepted message %d without an id", msg.ID)
		return response, nil
	}
	if err := service.outbox.AttachGatewayID(ctx, msg.CorrelationID, response.GatewayID); err != nil {
		// The message left already; only the callback correlation is lost.
		logrus.WithError(err).Errorf("[SEND] Failed to attach gateway id %s to message %d", response.GatewayID, msg.ID)
	}
	return response, nil
}

func (service serviceSend) target(ctx context.Context, base domainSend.BaseRequest, channelID *uint) (*inbox.Contact, *inbox.Conversation, error) {
	if base.ConversationID != 0 {
		conv, err := service.outbox.GetConversation(ctx, base.ConversationID)
		if err != nil {
			return nil, nil, err
		}
		contact, err := service.outbox.GetContact(ctx, conv.ContactID)
		if err != nil {
			return nil, nil, err
		}
		return contact, conv, nil
	}

	contact, _, err := service.outbox.UpsertContact(ctx, base.Phone, "", "")
	if err != nil {
		return nil, nil, err
	}
	conv, _, err := service.outbox.UpsertConversation(ctx, contact.ID, channelID)
	if err != nil {
		return nil, nil, err
	}
	return contact, conv, nil
}

func (service serviceSend) SendText(ctx context.Context, request domainSend.MessageRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendMessage(ctx, request); err != nil {
		return response, err
	}

	msg := &inbox.Message{Type: inbox.MessageText, Content: request.Message}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendText(ctx, creds, phone, request.Message)
	})
}

func (service serviceSend) SendImage(ctx context.Context, request domainSend.ImageRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendImage(ctx, request); err != nil {
		return response, err
	}

	payload := request.ImageURL
	meta := map[string]any{}
	if request.ImagePath != "" {
		defer os.Remove(request.ImagePath)
		payload, err = encodeImage(request.ImagePath, request.Compress)
		if err != nil {
			return response, err
		}
		meta[inbox.MetaFileName] = filepath.Base(request.ImagePath)
		meta[inbox.MetaMimeType] = "image/jpeg"
	} else {
		meta[inbox.MetaMediaURL] = request.ImageURL
	}
	if request.Caption != "" {
		meta[inbox.MetaCaption] = request.Caption
	}

	content := request.ImageURL
	if content == "" {
		content = "📷 Imagem"
	}
	msg := &inbox.Message{Type: inbox.MessageImage, Content: content, Metadata: meta}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendImage(ctx, creds, phone, payload, request.Caption)
	})
}

// encodeImage downsizes an uploaded image and returns it as a JPEG data URL.
func encodeImage(path string, compress bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", pkgError.InternalServerError(fmt.Sprintf("failed to stat image %v", err))
	}
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", pkgError.ValidationError(fmt.Sprintf("failed to open image: %v", err))
	}

	width := maxImageWidth
	if compress {
		width = compressImageWidth
	}
	var img image.Image = src
	if src.Bounds().Dx() > width {
		img = imaging.Resize(src, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", pkgError.InternalServerError(fmt.Sprintf("failed to encode image %v", err))
	}
	logrus.Debugf("[SEND] Image %s encoded: %s -> %s", filepath.Base(path), humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(buf.Len())))
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (service serviceSend) SendFile(ctx context.Context, request domainSend.FileRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendFile(ctx, request); err != nil {
		return response, err
	}

	name := request.FileName
	if name == "" {
		name = filepath.Base(strings.SplitN(request.FileURL, "?", 2)[0])
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")

	placeholder := "📄 Documento: " + name
	if request.Size > 0 {
		placeholder += " (" + humanize.Bytes(uint64(request.Size)) + ")"
	}
	msg := &inbox.Message{
		Type:    inbox.MessageDocument,
		Content: request.FileURL,
		Metadata: map[string]any{
			inbox.MetaMediaURL: request.FileURL,
			inbox.MetaFileName: name,
			"placeholder":      placeholder,
		},
	}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendDocument(ctx, creds, phone, request.FileURL, ext, name)
	})
}

func (service serviceSend) SendAudio(ctx context.Context, request domainSend.AudioRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendAudio(ctx, request); err != nil {
		return response, err
	}

	msg := &inbox.Message{
		Type:     inbox.MessageAudio,
		Content:  request.AudioURL,
		Metadata: map[string]any{inbox.MetaMediaURL: request.AudioURL},
	}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendAudio(ctx, creds, phone, request.AudioURL)
	})
}

func (service serviceSend) SendVideo(ctx context.Context, request domainSend.VideoRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendVideo(ctx, request); err != nil {
		return response, err
	}

	meta := map[string]any{inbox.MetaMediaURL: request.VideoURL}
	if request.Caption != "" {
		meta[inbox.MetaCaption] = request.Caption
	}
	msg := &inbox.Message{Type: inbox.MessageVideo, Content: request.VideoURL, Metadata: meta}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendVideo(ctx, creds, phone, request.VideoURL, request.Caption)
	})
}

func (service serviceSend) SendLink(ctx context.Context, request domainSend.LinkRequest) (response domainSend.GenericResponse, err error) {
	if err = validations.ValidateSendLink(ctx, request); err != nil {
		return response, err
	}

	preview, err := service.preview(ctx, request.Link)
	if err != nil {
		logrus.Warnf("[SEND] Failed to get metadata for link: %v", err)
		preview = linkpreview.Preview{}
	}

	text := request.Link
	if request.Caption != "" {
		text = request.Caption + "\n" + request.Link
	}
	meta := map[string]any{"link": request.Link}
	if preview.Title != "" {
		meta["title"] = preview.Title
	}
	msg := &inbox.Message{Type: inbox.MessageText, Content: text, Metadata: meta}
	return service.deliver(ctx, request.BaseRequest, msg, func(ctx context.Context, creds gateway.Credentials, phone string) (gateway.SendResult, error) {
		return service.gateway.SendLink(ctx, creds, phone, gateway.LinkMessage{
			Message:         text,
			Image:           preview.ImageURL,
			LinkURL:         request.Link,
			Title:           preview.Title,
			LinkDescription: preview.Description,
		})
	})
}
