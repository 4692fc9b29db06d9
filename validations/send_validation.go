package validations

import (
	"context"
	"fmt"

	domainSend "github.com/eduzayn/educhat/domains/send"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxTextLength    = 4096
	maxCaptionLength = 1024
	maxDocumentSize  = 100 << 20
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

func validateBase(ctx context.Context, request domainSend.BaseRequest) error {
	if request.ConversationID == 0 && request.Phone == "" {
		return pkgError.ValidationError("conversation_id or phone is required")
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Phone, validation.By(func(value any) error {
			phone, _ := value.(string)
			if phone == "" {
				return nil
			}
			if n := len(utils.NormalizePhone(phone)); n < 10 || n > 15 {
				return validation.NewError("validation_phone", "must contain 10 to 15 digits")
			}
			return nil
		})),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendMessage(ctx context.Context, request domainSend.MessageRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Message, validation.Required, validation.RuneLength(1, maxTextLength)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendImage(ctx context.Context, request domainSend.ImageRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Caption, validation.RuneLength(0, maxCaptionLength)),
		validation.Field(&request.ImageURL, is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if request.Image == nil && request.ImageURL == "" {
		return pkgError.ValidationError("either image or image_url is required")
	}
	if request.Image != nil && request.ImageURL != "" {
		return pkgError.ValidationError("send either image or image_url, not both")
	}
	if request.Image != nil {
		ext := extensionOf(request.Image.Filename)
		if !imageExtensions[ext] {
			return pkgError.ValidationError(fmt.Sprintf("unsupported image type %q", ext))
		}
	}
	return nil
}

func ValidateSendFile(ctx context.Context, request domainSend.FileRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.FileURL, validation.Required, is.URL),
		validation.Field(&request.Size, validation.Max(int64(maxDocumentSize))),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendAudio(ctx context.Context, request domainSend.AudioRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AudioURL, validation.Required, is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendVideo(ctx context.Context, request domainSend.VideoRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.VideoURL, validation.Required, is.URL),
		validation.Field(&request.Caption, validation.RuneLength(0, maxCaptionLength)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendLink(ctx context.Context, request domainSend.LinkRequest) error {
	if err := validateBase(ctx, request.BaseRequest); err != nil {
		return err
	}
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Link, validation.Required, is.URL),
		validation.Field(&request.Caption, validation.RuneLength(0, maxCaptionLength)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
