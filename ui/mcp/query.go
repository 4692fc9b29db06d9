package mcp

import (
	"context"
	"fmt"

	bot "github.com/eduzayn/educhat/botengine/domain"
	crm "github.com/eduzayn/educhat/crm/domain"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Conversations interface {
	GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error)
	ListConversations(ctx context.Context, filter inbox.ConversationFilter) ([]*inbox.Conversation, error)
}

type MemoryContext interface {
	GetContext(ctx context.Context, conversationID, contactID uint) (string, error)
}

type DealReader interface {
	Deals(ctx context.Context, filter crm.Filter) ([]*crm.Deal, error)
}

type HandoffPreviewer interface {
	Preview(ctx context.Context, conversationID uint, text string) (*bot.Classification, *handoff.Recommendation, error)
}

type QueryHandler struct {
	conversations Conversations
	memory        MemoryContext
	deals         DealReader
	previewer     HandoffPreviewer
}

func InitMcpQuery(conversations Conversations, memory MemoryContext, deals DealReader, previewer HandoffPreviewer) *QueryHandler {
	return &QueryHandler{
		conversations: conversations,
		memory:        memory,
		deals:         deals,
		previewer:     previewer,
	}
}

func (h *QueryHandler) AddQueryTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolListConversations(), h.handleListConversations)
	mcpServer.AddTool(h.toolMemoryContext(), h.handleMemoryContext)
	mcpServer.AddTool(h.toolListDeals(), h.handleListDeals)
	mcpServer.AddTool(h.toolRecommendHandoff(), h.handleRecommendHandoff)
}

func (h *QueryHandler) toolListConversations() mcp.Tool {
	return mcp.NewTool(
		"educhat_list_conversations",
		mcp.WithDescription("List inbox conversations, most recent first."),
		mcp.WithTitleAnnotation("List Conversations"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("status",
			mcp.Description("Filter by conversation status (open, pending, resolved)."),
		),
		mcp.WithString("macrosetor",
			mcp.Description("Filter by business area, e.g. comercial or suporte."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of conversations to return (default 20)."),
		),
	)
}

func (h *QueryHandler) handleListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := inbox.ConversationFilter{
		Status:     inbox.ConversationStatus(request.GetString("status", "")),
		Macrosetor: request.GetString("macrosetor", ""),
		Limit:      request.GetInt("limit", 20),
	}

	conversations, err := h.conversations.ListConversations(ctx, filter)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Found %d conversations", len(conversations))
	return mcp.NewToolResultStructured(map[string]any{"conversations": conversations}, fallback), nil
}

func (h *QueryHandler) toolMemoryContext() mcp.Tool {
	return mcp.NewTool(
		"educhat_memory_context",
		mcp.WithDescription("Return the remembered facts about a conversation's contact, rendered as the context block given to the classifier."),
		mcp.WithTitleAnnotation("Get Memory Context"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithNumber("conversation_id",
			mcp.Description("Internal conversation id."),
			mcp.Required(),
		),
	)
}

func (h *QueryHandler) handleMemoryContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conv, err := h.conversation(ctx, request)
	if err != nil {
		return nil, err
	}

	rendered, err := h.memory.GetContext(ctx, conv.ID, conv.ContactID)
	if err != nil {
		return nil, err
	}
	if rendered == "" {
		return mcp.NewToolResultText("No memory recorded for this conversation."), nil
	}
	return mcp.NewToolResultText(rendered), nil
}

func (h *QueryHandler) toolListDeals() mcp.Tool {
	return mcp.NewTool(
		"educhat_list_deals",
		mcp.WithDescription("List CRM deals projected from conversations."),
		mcp.WithTitleAnnotation("List Deals"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("macrosetor",
			mcp.Description("Only deals of this business area."),
		),
		mcp.WithString("stage",
			mcp.Description("Only deals currently in this stage."),
		),
		mcp.WithBoolean("active_only",
			mcp.Description("Skip won and lost deals (default true)."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of deals to return (default 20)."),
		),
	)
}

func (h *QueryHandler) handleListDeals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := crm.Filter{
		Macrosetor: request.GetString("macrosetor", ""),
		Stage:      request.GetString("stage", ""),
		ActiveOnly: request.GetBool("active_only", true),
		Limit:      request.GetInt("limit", 20),
	}

	deals, err := h.deals.Deals(ctx, filter)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Found %d deals", len(deals))
	return mcp.NewToolResultStructured(map[string]any{"deals": deals}, fallback), nil
}

func (h *QueryHandler) toolRecommendHandoff() mcp.Tool {
	return mcp.NewTool(
		"educhat_recommend_handoff",
		mcp.WithDescription("Classify a text in the context of a conversation and report which team it should be routed to. Nothing is transferred."),
		mcp.WithTitleAnnotation("Recommend Handoff"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithNumber("conversation_id",
			mcp.Description("Internal conversation id."),
			mcp.Required(),
		),
		mcp.WithString("text",
			mcp.Description("Message text to evaluate."),
			mcp.Required(),
		),
	)
}

func (h *QueryHandler) handleRecommendHandoff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conv, err := h.conversation(ctx, request)
	if err != nil {
		return nil, err
	}
	text, err := request.RequireString("text")
	if err != nil {
		return nil, err
	}

	cls, rec, err := h.previewer.Preview(ctx, conv.ID, text)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Intent %s (confidence %d): no handoff recommended", cls.Intent, cls.Confidence)
	if rec != nil {
		fallback = fmt.Sprintf("Intent %s (confidence %d): route to team %s", cls.Intent, cls.Confidence, rec.Team)
	}
	return mcp.NewToolResultStructured(map[string]any{
		"classification": cls,
		"recommendation": rec,
	}, fallback), nil
}

func (h *QueryHandler) conversation(ctx context.Context, request mcp.CallToolRequest) (*inbox.Conversation, error) {
	id, err := request.RequireInt("conversation_id")
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("conversation_id must be positive")
	}
	return h.conversations.GetConversation(ctx, uint(id))
}
