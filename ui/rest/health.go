package rest

import (
	"net/http"

	"github.com/eduzayn/educhat/domains/health"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}
	app.Get("/health", handler.GetStatus)
	app.Post("/health/check", handler.CheckAll)
	app.Get("/system/workers", GetAnalysisPoolStats)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	records, err := h.Service.GetStatus(c.UserContext())
	check(err)
	return h.respond(c, "Health status retrieved", records)
}

func (h *Health) CheckAll(c *fiber.Ctx) error {
	records, err := h.Service.CheckAll(c.UserContext())
	check(err)
	return h.respond(c, "Health checks completed", records)
}

// respond answers 503 when any dependency is in error.
func (h *Health) respond(c *fiber.Ctx, message string, records []health.HealthRecord) error {
	status := http.StatusOK
	code := "SUCCESS"
	for _, r := range records {
		if r.Status == health.StatusError {
			status = http.StatusServiceUnavailable
			code = "DEGRADED"
			break
		}
	}
	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    code,
		Message: message,
		Results: records,
	})
}
