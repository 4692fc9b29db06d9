package mcp

import (
	"context"
	"fmt"

	domainSend "github.com/eduzayn/educhat/domains/send"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type SendHandler struct {
	sendService domainSend.ISendUsecase
}

func InitMcpSend(sendService domainSend.ISendUsecase) *SendHandler {
	return &SendHandler{sendService: sendService}
}

func (h *SendHandler) AddSendTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolSendText(), h.handleSendText)
}

func (h *SendHandler) toolSendText() mcp.Tool {
	return mcp.NewTool(
		"educhat_send_text",
		mcp.WithDescription("Send a WhatsApp text message through the gateway and record it in the inbox."),
		mcp.WithTitleAnnotation("Send Text Message"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("phone",
			mcp.Description("Recipient phone number with country code. Required unless conversation_id is given."),
		),
		mcp.WithNumber("conversation_id",
			mcp.Description("Existing conversation to reply in."),
		),
		mcp.WithNumber("channel_id",
			mcp.Description("Channel to send from. Defaults to the default channel."),
		),
		mcp.WithString("message",
			mcp.Description("Text to send."),
			mcp.Required(),
		),
	)
}

func (h *SendHandler) handleSendText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return nil, err
	}

	req := domainSend.MessageRequest{
		BaseRequest: domainSend.BaseRequest{
			Phone:      request.GetString("phone", ""),
			SenderName: "MCP",
		},
		Message: message,
	}
	if id := request.GetInt("conversation_id", 0); id > 0 {
		req.ConversationID = uint(id)
	}
	if id := request.GetInt("channel_id", 0); id > 0 {
		channelID := uint(id)
		req.ChannelID = &channelID
	}

	resp, err := h.sendService.SendText(ctx, req)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Message %d sent (gateway id %s)", resp.MessageID, resp.GatewayID)
	return mcp.NewToolResultStructured(resp, fallback), nil
}
