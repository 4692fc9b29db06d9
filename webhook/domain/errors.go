package domain

import "errors"

// ErrMalformedPayload matches every MalformedWebhookPayload.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// MalformedWebhookPayload is logged and acknowledged, never retried.
type MalformedWebhookPayload struct {
	Reason string
}

func Malformed(reason string) *MalformedWebhookPayload {
	return &MalformedWebhookPayload{Reason: reason}
}

func (e *MalformedWebhookPayload) Error() string {
	return "malformed webhook payload: " + e.Reason
}

func (e *MalformedWebhookPayload) Is(target error) bool {
	return target == ErrMalformedPayload
}
