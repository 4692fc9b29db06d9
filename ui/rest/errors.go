package rest

import (
	"errors"
	"strconv"

	channels "github.com/eduzayn/educhat/channels/domain"
	crm "github.com/eduzayn/educhat/crm/domain"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	memory "github.com/eduzayn/educhat/memory/domain"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

var (
	notFoundErrors = []error{
		inbox.ErrContactNotFound,
		inbox.ErrConversationNotFound,
		inbox.ErrMessageNotFound,
		channels.ErrChannelNotFound,
		crm.ErrDealNotFound,
		handoff.ErrTeamNotFound,
		handoff.ErrAgentNotFound,
		handoff.ErrConversationNotFound,
		memory.ErrEntryNotFound,
	}
	badRequestErrors = []error{
		inbox.ErrInvalidPhone,
		memory.ErrInvalidEntry,
		handoff.ErrNoTarget,
		channels.ErrInvalidChannelType,
	}
	conflictErrors = []error{
		channels.ErrDuplicateInstance,
		handoff.ErrDuplicateTeam,
		crm.ErrActiveDealExists,
	}
)

// check translates domain sentinels into typed errors and hands them to the
// recovery middleware.
func check(err error) {
	if err == nil {
		return
	}
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		utils.PanicIfNeeded(err)
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			utils.PanicIfNeeded(pkgError.NotFoundError(err.Error()))
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			utils.PanicIfNeeded(pkgError.ConflictError(err.Error()))
		}
	}
	utils.PanicIfNeeded(err)
}

func paramID(c *fiber.Ctx, name string) uint {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		utils.PanicIfNeeded(pkgError.ValidationError(name + " must be a positive integer"))
	}
	return uint(id)
}

func parseBody(c *fiber.Ctx, dest any) {
	if err := c.BodyParser(dest); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body: " + err.Error()))
	}
}

func success(c *fiber.Ctx, message string, results any) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}
