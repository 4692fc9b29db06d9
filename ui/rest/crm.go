package rest

import (
	"context"

	crm "github.com/eduzayn/educhat/crm/domain"
	"github.com/gofiber/fiber/v2"
)

type DealReader interface {
	Deals(ctx context.Context, filter crm.Filter) ([]*crm.Deal, error)
	Deal(ctx context.Context, id uint) (*crm.Deal, error)
}

type Deals struct {
	Service DealReader
}

func InitRestDeals(app fiber.Router, service DealReader) Deals {
	rest := Deals{Service: service}
	app.Get("/deals", rest.List)
	app.Get("/deals/:id", rest.Get)
	return rest
}

func (handler *Deals) List(c *fiber.Ctx) error {
	filter := crm.Filter{
		ContactID:  uint(c.QueryInt("contact_id", 0)),
		Macrosetor: c.Query("macrosetor"),
		Stage:      c.Query("stage"),
		ActiveOnly: c.QueryBool("active", false),
		Limit:      c.QueryInt("limit", 50),
		Offset:     c.QueryInt("offset", 0),
	}
	deals, err := handler.Service.Deals(c.UserContext(), filter)
	check(err)
	return success(c, "Success fetch deals", deals)
}

func (handler *Deals) Get(c *fiber.Ctx) error {
	deal, err := handler.Service.Deal(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Success fetch deal", deal)
}
