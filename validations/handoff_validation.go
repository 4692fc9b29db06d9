package validations

import (
	"context"

	handoffApp "github.com/eduzayn/educhat/handoff/application"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func ValidateManualHandoff(ctx context.Context, request handoffApp.ManualRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Type, validation.Required, validation.In(handoff.TypeManual, handoff.TypeCorrectedRedistribution)),
		validation.Field(&request.Priority, validation.In(handoff.PriorityLow, handoff.PriorityNormal, handoff.PriorityHigh, handoff.PriorityUrgent)),
		validation.Field(&request.Reason, validation.Length(0, 500)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if request.TeamID == nil && request.UserID == nil {
		return pkgError.ValidationError("team_id or user_id is required")
	}
	return nil
}

// ValidateTeam also requires the team's macrosetor to be one of the loaded
// funnels, otherwise automatic routing could never select it.
func ValidateTeam(ctx context.Context, team handoff.Team, macrosetores []string) error {
	known := make([]interface{}, len(macrosetores))
	for i, name := range macrosetores {
		known[i] = name
	}
	err := validation.ValidateStructWithContext(ctx, &team,
		validation.Field(&team.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&team.Macrosetor, validation.Required, validation.Length(1, 50), validation.In(known...)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateAgent(ctx context.Context, agent handoff.Agent) error {
	err := validation.ValidateStructWithContext(ctx, &agent,
		validation.Field(&agent.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&agent.Email, is.EmailFormat),
		validation.Field(&agent.TeamID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
