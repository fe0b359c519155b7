// Package providertest provides a scripted Gateway for tests that must not
// reach the real AI service.
package providertest

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/gemsearch/models"
	"github.com/mohammad-safakhou/gemsearch/provider"
)

// ReplyFunc answers one turn.
type ReplyFunc func(ctx context.Context, text string) (models.Reply, error)

// Static always answers with reply.
func Static(reply models.Reply) ReplyFunc {
	return func(context.Context, string) (models.Reply, error) { return reply, nil }
}

// Fail always answers with err.
func Fail(err error) ReplyFunc {
	return func(context.Context, string) (models.Reply, error) { return models.Reply{}, err }
}

// Conversation records every turn it receives.
type Conversation struct {
	reply ReplyFunc

	mu   sync.Mutex
	sent []string
}

func NewConversation(fn ReplyFunc) *Conversation {
	return &Conversation{reply: fn}
}

func (c *Conversation) SendMessage(ctx context.Context, text string) (models.Reply, error) {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()
	return c.reply(ctx, text)
}

// Sent returns the turns received so far, in order.
func (c *Conversation) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Gateway hands out Conversations that all answer through Reply.
type Gateway struct {
	Reply    ReplyFunc
	StartErr error

	mu    sync.Mutex
	convs []*Conversation
}

var _ provider.Gateway = (*Gateway)(nil)

func (g *Gateway) StartConversation(context.Context) (provider.Conversation, error) {
	if g.StartErr != nil {
		return nil, g.StartErr
	}
	conv := NewConversation(g.Reply)
	g.mu.Lock()
	g.convs = append(g.convs, conv)
	g.mu.Unlock()
	return conv, nil
}

// Conversations returns every conversation started so far.
func (g *Gateway) Conversations() []*Conversation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Conversation(nil), g.convs...)
}
