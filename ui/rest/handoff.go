package rest

import (
	"context"

	bot "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	handoffApp "github.com/eduzayn/educhat/handoff/application"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/validations"
	"github.com/gofiber/fiber/v2"
)

type HandoffService interface {
	ExecuteManual(ctx context.Context, conversationID uint, req handoffApp.ManualRequest) (*handoff.Handoff, error)
	History(ctx context.Context, conversationID uint, limit int) ([]*handoff.Handoff, error)
	Teams(ctx context.Context) ([]*handoff.Team, error)
	CreateTeam(ctx context.Context, t *handoff.Team) error
	CreateAgent(ctx context.Context, a *handoff.Agent) error
}

// HandoffPreviewer classifies a text against a conversation without acting on it.
type HandoffPreviewer interface {
	Preview(ctx context.Context, conversationID uint, text string) (*bot.Classification, *handoff.Recommendation, error)
}

type ConversationLookup interface {
	GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error)
}

type Handoff struct {
	Service       HandoffService
	Previewer     HandoffPreviewer
	Conversations ConversationLookup
	Rules         *rules.Rules
}

func InitRestHandoff(app fiber.Router, service HandoffService, previewer HandoffPreviewer, conversations ConversationLookup, ruleSet *rules.Rules) Handoff {
	rest := Handoff{Service: service, Previewer: previewer, Conversations: conversations, Rules: ruleSet}
	app.Post("/conversations/:id/handoff", rest.Execute)
	app.Get("/conversations/:id/handoffs", rest.History)
	app.Post("/conversations/:id/handoff/recommend", rest.Recommend)
	app.Get("/teams", rest.Teams)
	app.Post("/teams", rest.CreateTeam)
	app.Post("/agents", rest.CreateAgent)
	return rest
}

func (controller *Handoff) Execute(c *fiber.Ctx) error {
	id := paramID(c, "id")
	var request handoffApp.ManualRequest
	parseBody(c, &request)
	check(validations.ValidateManualHandoff(c.UserContext(), request))

	_, err := controller.Conversations.GetConversation(c.UserContext(), id)
	check(err)

	h, err := controller.Service.ExecuteManual(c.UserContext(), id, request)
	check(err)
	return success(c, "Handoff completed", h)
}

func (controller *Handoff) History(c *fiber.Ctx) error {
	items, err := controller.Service.History(c.UserContext(), paramID(c, "id"), c.QueryInt("limit", 20))
	check(err)
	return success(c, "Success fetch handoffs", items)
}

type recommendRequest struct {
	Text string `json:"text"`
}

func (controller *Handoff) Recommend(c *fiber.Ctx) error {
	id := paramID(c, "id")
	var request recommendRequest
	parseBody(c, &request)
	if request.Text == "" {
		check(pkgError.ValidationError("text: cannot be blank."))
	}

	cls, rec, err := controller.Previewer.Preview(c.UserContext(), id, request.Text)
	check(err)
	return success(c, "Success preview handoff", fiber.Map{
		"classification": cls,
		"recommendation": rec,
	})
}

func (controller *Handoff) Teams(c *fiber.Ctx) error {
	teams, err := controller.Service.Teams(c.UserContext())
	check(err)
	return success(c, "Success fetch teams", teams)
}

func (controller *Handoff) CreateTeam(c *fiber.Ctx) error {
	var team handoff.Team
	parseBody(c, &team)
	team.Active = true
	check(validations.ValidateTeam(c.UserContext(), team, controller.Rules.MacrosetorNames()))

	check(controller.Service.CreateTeam(c.UserContext(), &team))
	return success(c, "Team created", team)
}

func (controller *Handoff) CreateAgent(c *fiber.Ctx) error {
	var agent handoff.Agent
	parseBody(c, &agent)
	agent.Active = true
	check(validations.ValidateAgent(c.UserContext(), agent))

	check(controller.Service.CreateAgent(c.UserContext(), &agent))
	return success(c, "Agent created", agent)
}
