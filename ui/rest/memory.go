package rest

import (
	"context"

	memory "github.com/eduzayn/educhat/memory/domain"
	"github.com/gofiber/fiber/v2"
)

type MemoryService interface {
	Entries(ctx context.Context, conversationID, contactID uint) ([]*memory.Entry, error)
	GetContext(ctx context.Context, conversationID, contactID uint) (string, error)
	Save(ctx context.Context, e *memory.Entry) error
	Forget(ctx context.Context, id uint) error
}

type Memory struct {
	Service       MemoryService
	Conversations ConversationLookup
}

func InitRestMemory(app fiber.Router, service MemoryService, conversations ConversationLookup) Memory {
	rest := Memory{Service: service, Conversations: conversations}
	app.Get("/conversations/:id/memory", rest.Get)
	app.Post("/conversations/:id/memory", rest.Save)
	app.Delete("/memory/:id", rest.Forget)
	return rest
}

func (handler *Memory) Get(c *fiber.Ctx) error {
	conv, err := handler.Conversations.GetConversation(c.UserContext(), paramID(c, "id"))
	check(err)

	entries, err := handler.Service.Entries(c.UserContext(), conv.ID, conv.ContactID)
	check(err)
	rendered, err := handler.Service.GetContext(c.UserContext(), conv.ID, conv.ContactID)
	check(err)

	return success(c, "Success fetch memory", fiber.Map{
		"entries": entries,
		"context": rendered,
	})
}

type memoryRequest struct {
	Type       memory.EntryType `json:"type"`
	Key        string           `json:"key"`
	Value      string           `json:"value"`
	Confidence int              `json:"confidence"`
}

func (handler *Memory) Save(c *fiber.Ctx) error {
	conv, err := handler.Conversations.GetConversation(c.UserContext(), paramID(c, "id"))
	check(err)

	var request memoryRequest
	parseBody(c, &request)
	if request.Confidence == 0 {
		request.Confidence = 100
	}
	entry := &memory.Entry{
		ConversationID: conv.ID,
		ContactID:      conv.ContactID,
		Type:           request.Type,
		Key:            request.Key,
		Value:          request.Value,
		Confidence:     request.Confidence,
		Source:         memory.SourceManual,
		Active:         true,
	}
	check(handler.Service.Save(c.UserContext(), entry))
	return success(c, "Memory saved", entry)
}

func (handler *Memory) Forget(c *fiber.Ctx) error {
	check(handler.Service.Forget(c.UserContext(), paramID(c, "id")))
	return success(c, "Memory removed", nil)
}
