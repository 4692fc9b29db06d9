package middleware

import (
	"errors"
	"net/http"

	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "erro interno do servidor"

// Recovery renders panics as the response envelope. Typed errors keep their
// code and status; anything else becomes a 500 without leaking details.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			res := utils.ResponseData{
				Status:  http.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: internalErrorMessage,
			}

			err, isError := recovered.(error)
			var generic pkgError.GenericError
			switch {
			case isError && errors.As(err, &generic):
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
				if res.Status >= http.StatusInternalServerError {
					logrus.WithError(err).Errorf("[REST] %s %s failed", ctx.Method(), ctx.Path())
				}
			default:
				logrus.Errorf("[REST] Panic recovered on %s %s: %v", ctx.Method(), ctx.Path(), recovered)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
