package rest

import (
	"context"

	channelApp "github.com/eduzayn/educhat/channels/application"
	channels "github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/validations"
	"github.com/gofiber/fiber/v2"
)

type ChannelService interface {
	Create(ctx context.Context, in channelApp.ChannelInput) (*channels.Channel, error)
	List(ctx context.Context) ([]*channels.Channel, error)
	Get(ctx context.Context, id uint) (*channels.Channel, error)
	Update(ctx context.Context, id uint, in channelApp.ChannelInput) (*channels.Channel, error)
}

type ChannelStatus interface {
	Status(ctx context.Context, channelID uint) (channels.CachedStatus, error)
}

type ChannelHandler struct {
	Service ChannelService
	Status  ChannelStatus
}

func InitChannelAPI(app fiber.Router, service ChannelService, status ChannelStatus) ChannelHandler {
	handler := ChannelHandler{Service: service, Status: status}
	app.Post("/channels", handler.Create)
	app.Get("/channels", handler.List)
	app.Get("/channels/:id", handler.Get)
	app.Put("/channels/:id", handler.Update)
	app.Get("/channels/:id/status", handler.ConnectionStatus)
	return handler
}

func (h *ChannelHandler) Create(c *fiber.Ctx) error {
	var request channelApp.ChannelInput
	parseBody(c, &request)
	check(validations.ValidateChannel(c.UserContext(), request))

	ch, err := h.Service.Create(c.UserContext(), request)
	check(err)
	return success(c, "Channel created", ch)
}

func (h *ChannelHandler) List(c *fiber.Ctx) error {
	list, err := h.Service.List(c.UserContext())
	check(err)
	return success(c, "Success fetch channels", list)
}

func (h *ChannelHandler) Get(c *fiber.Ctx) error {
	ch, err := h.Service.Get(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Success fetch channel", ch)
}

func (h *ChannelHandler) Update(c *fiber.Ctx) error {
	var request channelApp.ChannelInput
	parseBody(c, &request)

	ch, err := h.Service.Update(c.UserContext(), paramID(c, "id"), request)
	check(err)
	return success(c, "Channel updated", ch)
}

func (h *ChannelHandler) ConnectionStatus(c *fiber.Ctx) error {
	st, err := h.Status.Status(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Success fetch channel status", st)
}
