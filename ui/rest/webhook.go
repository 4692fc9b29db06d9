package rest

import (
	"context"
	"strconv"

	"github.com/eduzayn/educhat/webhook/domain"
	"github.com/gofiber/fiber/v2"
)

// WebhookHandler processes one raw gateway callback.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, channelID *uint) domain.Result
}

type Webhook struct {
	Pipeline WebhookHandler
}

func InitRestWebhook(app fiber.Router, pipeline WebhookHandler) Webhook {
	rest := Webhook{Pipeline: pipeline}
	app.Post("/webhooks/gateway", rest.Receive)
	app.Post("/webhooks/gateway/:channelId", rest.Receive)
	return rest
}

// Receive always answers 200. The outcome is
// reported in the body.
func (handler *Webhook) Receive(c *fiber.Ctx) error {
	var channelID *uint
	if raw := c.Params("channelId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			v := uint(id)
			channelID = &v
		}
	}

	body := append([]byte(nil), c.Body()...)
	result := handler.Pipeline.Handle(c.UserContext(), body, channelID)
	return c.Status(fiber.StatusOK).JSON(result)
}
