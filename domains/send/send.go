package send

import (
	"context"
	"mime/multipart"
)

type ISendUsecase interface {
	SendText(ctx context.Context, request MessageRequest) (GenericResponse, error)
	SendImage(ctx context.Context, request ImageRequest) (GenericResponse, error)
	SendFile(ctx context.Context, request FileRequest) (GenericResponse, error)
	SendAudio(ctx context.Context, request AudioRequest) (GenericResponse, error)
	SendVideo(ctx context.Context, request VideoRequest) (GenericResponse, error)
	SendLink(ctx context.Context, request LinkRequest) (GenericResponse, error)
}

// BaseRequest addresses an outbound message. Either ConversationID or Phone
// must be set; ChannelID pins the gateway instance.
type BaseRequest struct {
	ChannelID      *uint  `json:"channel_id,omitempty" form:"channel_id"`
	ConversationID uint   `json:"conversation_id,omitempty" form:"conversation_id"`
	Phone          string `json:"phone,omitempty" form:"phone"`
	SenderName     string `json:"sender_name,omitempty" form:"sender_name"`
}

type MessageRequest struct {
	BaseRequest
	Message string `json:"message" form:"message"`
}

type ImageRequest struct {
	BaseRequest
	Caption  string                `json:"caption" form:"caption"`
	ImageURL string                `json:"image_url,omitempty" form:"image_url"`
	Image    *multipart.FileHeader `json:"-" form:"-"`
	// ImagePath is set by the REST layer after the upload was saved.
	ImagePath string `json:"-" form:"-"`
	Compress  bool   `json:"compress" form:"compress"`
}

type FileRequest struct {
	BaseRequest
	FileURL  string `json:"file_url" form:"file_url"`
	FileName string `json:"file_name" form:"file_name"`
	Size     int64  `json:"size,omitempty" form:"size"`
}

type AudioRequest struct {
	BaseRequest
	AudioURL string `json:"audio_url" form:"audio_url"`
}

type VideoRequest struct {
	BaseRequest
	Caption  string `json:"caption" form:"caption"`
	VideoURL string `json:"video_url" form:"video_url"`
}

type LinkRequest struct {
	BaseRequest
	Link    string `json:"link" form:"link"`
	Caption string `json:"caption" form:"caption"`
}

type GenericResponse struct {
	MessageID      uint   `json:"message_id"`
	ConversationID uint   `json:"conversation_id"`
	CorrelationID  string `json:"correlation_id"`
	GatewayID      string `json:"gateway_message_id"`
	ChannelID      *uint  `json:"channel_id,omitempty"`
	Status         string `json:"status"`
}
