package rest

import (
	"fmt"
	"os"
	"path/filepath"

	domainSend "github.com/eduzayn/educhat/domains/send"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type Send struct {
	Service   domainSend.ISendUsecase
	UploadDir string
}

func InitRestSend(app fiber.Router, service domainSend.ISendUsecase, uploadDir string) Send {
	rest := Send{Service: service, UploadDir: uploadDir}
	app.Post("/send/message", rest.SendText)
	app.Post("/send/image", rest.SendImage)
	app.Post("/send/file", rest.SendFile)
	app.Post("/send/audio", rest.SendAudio)
	app.Post("/send/video", rest.SendVideo)
	app.Post("/send/link", rest.SendLink)
	return rest
}

func (controller *Send) SendText(c *fiber.Ctx) error {
	var request domainSend.MessageRequest
	parseBody(c, &request)

	response, err := controller.Service.SendText(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}

func (controller *Send) SendImage(c *fiber.Ctx) error {
	var request domainSend.ImageRequest
	parseBody(c, &request)

	file, err := c.FormFile("image")
	if err == nil {
		if err := os.MkdirAll(controller.UploadDir, 0o755); err != nil {
			check(pkgError.InternalServerError(fmt.Sprintf("failed to prepare upload dir: %v", err)))
		}
		request.Image = file
		request.ImagePath = filepath.Join(controller.UploadDir, uuid.NewString()+filepath.Ext(file.Filename))
		if err := fasthttp.SaveMultipartFile(file, request.ImagePath); err != nil {
			check(pkgError.InternalServerError(fmt.Sprintf("failed to save upload: %v", err)))
		}
		defer os.Remove(request.ImagePath)
	}

	response, err := controller.Service.SendImage(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}

func (controller *Send) SendFile(c *fiber.Ctx) error {
	var request domainSend.FileRequest
	parseBody(c, &request)

	response, err := controller.Service.SendFile(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}

func (controller *Send) SendAudio(c *fiber.Ctx) error {
	var request domainSend.AudioRequest
	parseBody(c, &request)

	response, err := controller.Service.SendAudio(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}

func (controller *Send) SendVideo(c *fiber.Ctx) error {
	var request domainSend.VideoRequest
	parseBody(c, &request)

	response, err := controller.Service.SendVideo(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}

func (controller *Send) SendLink(c *fiber.Ctx) error {
	var request domainSend.LinkRequest
	parseBody(c, &request)

	response, err := controller.Service.SendLink(c.UserContext(), request)
	check(err)
	return success(c, response.Status, response)
}
