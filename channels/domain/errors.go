package domain

import (
	"errors"
	"fmt"
	"net/http"

	pkgError "github.com/eduzayn/educhat/pkg/error"
)

var (
	ErrChannelNotFound    = errors.New("channel not found")
	ErrDuplicateInstance  = errors.New("a channel with this instance id already exists")
	ErrInvalidChannelType = errors.New("unsupported channel type")

	// ErrCredentialsUnavailable means no channel row and no environment fallback could supply credentials.
	ErrCredentialsUnavailable = errors.New("gateway credentials unavailable")
	// ErrChannelMisconfigured means an explicitly selected channel cannot be used for sending.
	ErrChannelMisconfigured = errors.New("channel misconfigured")
)

func CredentialsUnavailable(reason string) error {
	return &pkgError.CodedError{
		Code:    "CREDENTIALS_UNAVAILABLE",
		Status:  http.StatusUnprocessableEntity,
		Message: reason,
		Err:     ErrCredentialsUnavailable,
	}
}

func ChannelMisconfigured(channelID uint, reason string) error {
	return &pkgError.CodedError{
		Code:    "CHANNEL_MISCONFIGURED",
		Status:  http.StatusUnprocessableEntity,
		Message: fmt.Sprintf("channel %d: %s", channelID, reason),
		Err:     ErrChannelMisconfigured,
	}
}
