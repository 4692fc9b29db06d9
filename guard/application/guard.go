package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eduzayn/educhat/core/rules"
	"github.com/eduzayn/educhat/guard/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	echoWindow    = 60 * time.Second
	snippetLength = 200
)

// OutboundSource lists what the business sent to a conversation recently.
type OutboundSource interface {
	RecentOutbound(ctx context.Context, conversationID uint, since time.Time) ([]string, error)
}

// Guard stops automation for messages that look like automated replies.
type Guard struct {
	rules    *rules.Rules
	outbound OutboundSource
	blocks   domain.BlockRepository
	now      func() time.Time
}

func NewGuard(r *rules.Rules, outbound OutboundSource, blocks domain.BlockRepository) *Guard {
	return &Guard{rules: r, outbound: outbound, blocks: blocks, now: time.Now}
}

// ShouldBlock checks content against the configured patterns and the echo rule.
func (g *Guard) ShouldBlock(ctx context.Context, content string, conversationID uint) (domain.Verdict, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Verdict{}, nil
	}
	if rule, ok := g.rules.GuardMatch(content); ok {
		return domain.Verdict{Blocked: true, Reason: "pattern:" + rule.Name}, nil
	}
	if g.outbound == nil {
		return domain.Verdict{}, nil
	}

	sent, err := g.outbound.RecentOutbound(ctx, conversationID, g.now().Add(-echoWindow).UTC())
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("load recent outbound: %w", err)
	}
	folded := utils.Fold(strings.TrimSpace(content))
	for _, s := range sent {
		if utils.Fold(strings.TrimSpace(s)) == folded {
			return domain.Verdict{Blocked: true, Reason: domain.ReasonEchoOfOutbound}, nil
		}
	}
	return domain.Verdict{}, nil
}

// Check runs ShouldBlock for a stored message and records a block event when blocked.
func (g *Guard) Check(ctx context.Context, msg *inbox.Message) (domain.Verdict, error) {
	verdict, err := g.ShouldBlock(ctx, msg.Text(), msg.ConversationID)
	if err != nil || !verdict.Blocked {
		return verdict, err
	}

	ev := &domain.BlockEvent{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Reason:         verdict.Reason,
		Snippet:        utils.Truncate(msg.Text(), snippetLength),
	}
	if err := g.blocks.Record(ctx, ev); err != nil {
		return verdict, fmt.Errorf("record block event: %w", err)
	}
	logrus.Infof("[GUARD] Message %d in conversation %d blocked: %s", msg.ID, msg.ConversationID, verdict.Reason)
	return verdict, nil
}

func (g *Guard) Blocks(ctx context.Context, conversationID uint, limit int) ([]*domain.BlockEvent, error) {
	return g.blocks.ListByConversation(ctx, conversationID, limit)
}
