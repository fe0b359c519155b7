package provider

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mohammad-safakhou/gemsearch/config"
	"github.com/mohammad-safakhou/gemsearch/models"
	"github.com/mohammad-safakhou/gemsearch/provider/gemini"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Conversation is an opaque multi-turn chat with the upstream service. The
// upstream keeps the history; callers only send the next turn.
type Conversation interface {
	SendMessage(ctx context.Context, text string) (models.Reply, error)
}

// Gateway opens search-grounded conversations.
type Gateway interface {
	StartConversation(ctx context.Context) (Conversation, error)
}

// NewGateway creates a gateway for the configured provider.
func NewGateway(ctx context.Context, cfg config.GeminiConfig) (Gateway, error) {
	switch Client(cfg.Provider) {
	case Gemini, "":
		c, err := gemini.New(ctx, gemini.Options{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
			RequestTimeout:  cfg.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		return geminiGateway{c}, nil
	case OpenAI, Anthropic:
		return nil, errors.Errorf("%s client has no search grounding support yet", cfg.Provider)
	default:
		return nil, errors.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

type geminiGateway struct {
	client *gemini.Client
}

func (g geminiGateway) StartConversation(ctx context.Context) (Conversation, error) {
	conv, err := g.client.StartConversation(ctx)
	if err != nil {
		return nil, err
	}
	return conv, nil
}
