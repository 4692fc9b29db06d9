package rest

import (
	"context"

	bot "github.com/eduzayn/educhat/botengine/domain"
	guard "github.com/eduzayn/educhat/guard/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/pkg/chatpresence"
	"github.com/gofiber/fiber/v2"
)

// InboxReader is the registry surface served over REST.
type InboxReader interface {
	GetContact(ctx context.Context, id uint) (*inbox.Contact, error)
	GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error)
	ListConversations(ctx context.Context, filter inbox.ConversationFilter) ([]*inbox.Conversation, error)
	History(ctx context.Context, conversationID uint, limit int) ([]*inbox.Message, error)
	DeleteMessage(ctx context.Context, id uint) (*inbox.Message, error)
}

type ClassificationLog interface {
	ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*bot.LogEntry, error)
}

type BlockLog interface {
	Blocks(ctx context.Context, conversationID uint, limit int) ([]*guard.BlockEvent, error)
}

type PresenceLookup interface {
	Lookup(phone string) chatpresence.Snapshot
}

type Inbox struct {
	Registry        InboxReader
	Classifications ClassificationLog
	Blocks          BlockLog
	Presence        PresenceLookup
}

func InitRestInbox(app fiber.Router, registry InboxReader, classifications ClassificationLog, blocks BlockLog, presence PresenceLookup) Inbox {
	rest := Inbox{Registry: registry, Classifications: classifications, Blocks: blocks, Presence: presence}
	app.Get("/conversations", rest.ListConversations)
	app.Get("/conversations/:id", rest.GetConversation)
	app.Get("/conversations/:id/messages", rest.Messages)
	app.Get("/conversations/:id/classifications", rest.ClassificationHistory)
	app.Get("/conversations/:id/blocks", rest.BlockHistory)
	app.Get("/contacts/:id", rest.GetContact)
	app.Get("/contacts/:id/presence", rest.ContactPresence)
	app.Delete("/messages/:id", rest.DeleteMessage)
	return rest
}

func (handler *Inbox) ListConversations(c *fiber.Ctx) error {
	filter := inbox.ConversationFilter{
		Status:     inbox.ConversationStatus(c.Query("status")),
		Macrosetor: c.Query("macrosetor"),
		Limit:      c.QueryInt("limit", 50),
		Offset:     c.QueryInt("offset", 0),
	}
	if teamID := c.QueryInt("team_id", 0); teamID > 0 {
		id := uint(teamID)
		filter.TeamID = &id
	}

	conversations, err := handler.Registry.ListConversations(c.UserContext(), filter)
	check(err)
	return success(c, "Success fetch conversations", conversations)
}

func (handler *Inbox) GetConversation(c *fiber.Ctx) error {
	conv, err := handler.Registry.GetConversation(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Success fetch conversation", conv)
}

func (handler *Inbox) Messages(c *fiber.Ctx) error {
	id := paramID(c, "id")
	_, err := handler.Registry.GetConversation(c.UserContext(), id)
	check(err)

	messages, err := handler.Registry.History(c.UserContext(), id, c.QueryInt("limit", 50))
	check(err)
	return success(c, "Success fetch messages", messages)
}

func (handler *Inbox) ClassificationHistory(c *fiber.Ctx) error {
	logs, err := handler.Classifications.ListByConversation(c.UserContext(), paramID(c, "id"), c.QueryInt("limit", 20))
	check(err)
	return success(c, "Success fetch classifications", logs)
}

func (handler *Inbox) BlockHistory(c *fiber.Ctx) error {
	events, err := handler.Blocks.Blocks(c.UserContext(), paramID(c, "id"), c.QueryInt("limit", 20))
	check(err)
	return success(c, "Success fetch auto-reply blocks", events)
}

func (handler *Inbox) GetContact(c *fiber.Ctx) error {
	contact, err := handler.Registry.GetContact(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Success fetch contact", contact)
}

func (handler *Inbox) ContactPresence(c *fiber.Ctx) error {
	contact, err := handler.Registry.GetContact(c.UserContext(), paramID(c, "id"))
	check(err)

	snap := chatpresence.Snapshot{Phone: contact.Phone, State: chatpresence.StateUnknown}
	if handler.Presence != nil {
		snap = handler.Presence.Lookup(contact.Phone)
	}
	return success(c, "Success fetch presence", snap)
}

func (handler *Inbox) DeleteMessage(c *fiber.Ctx) error {
	msg, err := handler.Registry.DeleteMessage(c.UserContext(), paramID(c, "id"))
	check(err)
	return success(c, "Message deleted", msg)
}
