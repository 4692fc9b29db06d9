package validations

import (
	"context"

	channelApp "github.com/eduzayn/educhat/channels/application"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateChannel(ctx context.Context, request channelApp.ChannelInput) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&request.InstanceID, validation.Required),
		validation.Field(&request.Token, validation.Required),
		validation.Field(&request.ClientToken, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
