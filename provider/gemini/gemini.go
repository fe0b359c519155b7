package gemini

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/mohammad-safakhou/gemsearch/models"
)

// Options configures the Gemini client.
type Options struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	// RequestTimeout bounds a single turn; zero leaves the caller's context alone.
	RequestTimeout time.Duration
	// BaseURL and HTTPClient override the transport, mostly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client opens grounded chats against the Gemini API.
type Client struct {
	genai   *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration
}

// New creates a Gemini client. It does not contact the API.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.HTTPClient != nil {
		cc.HTTPClient = opts.HTTPClient
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GenAI client")
	}

	return &Client{
		genai: gc,
		model: opts.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(opts.Temperature),
			TopP:            genai.Ptr(opts.TopP),
			TopK:            genai.Ptr(opts.TopK),
			MaxOutputTokens: opts.MaxOutputTokens,
			Tools:           []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
		timeout: opts.RequestTimeout,
	}, nil
}

// StartConversation opens a new chat with Google Search grounding attached.
// Creating a chat is local; the first request happens on SendMessage.
func (c *Client) StartConversation(ctx context.Context) (*Conversation, error) {
	chat, err := c.genai.Chats.Create(ctx, c.model, c.config, nil)
	if err != nil {
		return nil, &models.UpstreamError{Message: "failed to start conversation: " + err.Error(), Err: err}
	}
	return &Conversation{chat: chat, timeout: c.timeout}, nil
}

// Conversation is one multi-turn chat. The chat keeps its own history, so
// turns must not be sent concurrently.
type Conversation struct {
	chat    *genai.Chat
	timeout time.Duration
}

// SendMessage sends text as the next user turn and waits for the answer.
func (c *Conversation) SendMessage(ctx context.Context, text string) (models.Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return models.Reply{}, &models.UpstreamError{Message: err.Error(), Err: err}
	}
	reply, err := toReply(resp)
	if err != nil {
		return models.Reply{}, err
	}

	ev := log.Debug().
		Int("text_len", len(reply.Text)).
		Bool("grounded", reply.Grounding != nil)
	if reply.Grounding != nil {
		ev = ev.Int("chunks", len(reply.Grounding.Chunks)).
			Int("supports", len(reply.Grounding.Supports)).
			Strs("web_search_queries", reply.Grounding.WebSearchQueries)
	}
	ev.Msg("gemini reply")
	return reply, nil
}

func toReply(resp *genai.GenerateContentResponse) (models.Reply, error) {
	if resp == nil {
		return models.Reply{}, &models.UpstreamError{Message: "empty response from Gemini"}
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" && pf.BlockReason != genai.BlockedReasonUnspecified {
		msg := "prompt blocked: " + string(pf.BlockReason)
		if pf.BlockReasonMessage != "" {
			msg += ": " + pf.BlockReasonMessage
		}
		return models.Reply{}, &models.UpstreamError{Message: msg}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return models.Reply{}, &models.UpstreamError{Message: "Gemini returned no candidates"}
	}
	return models.Reply{
		Text:      resp.Text(),
		Grounding: toGrounding(resp.Candidates[0].GroundingMetadata),
	}, nil
}

func toGrounding(gm *genai.GroundingMetadata) *models.GroundingMetadata {
	if gm == nil {
		return nil
	}
	out := &models.GroundingMetadata{
		Chunks:           make([]models.GroundingChunk, 0, len(gm.GroundingChunks)),
		Supports:         make([]models.GroundingSupport, 0, len(gm.GroundingSupports)),
		WebSearchQueries: gm.WebSearchQueries,
	}
	// positions matter: supports refer to chunks by index, so nil entries
	// become empty chunks rather than being dropped
	for _, ch := range gm.GroundingChunks {
		var c models.GroundingChunk
		if ch != nil && ch.Web != nil {
			c.URI = ch.Web.URI
			c.Title = ch.Web.Title
		}
		out.Chunks = append(out.Chunks, c)
	}
	for _, sup := range gm.GroundingSupports {
		if sup == nil {
			continue
		}
		s := models.GroundingSupport{ChunkIndices: make([]int, 0, len(sup.GroundingChunkIndices))}
		if sup.Segment != nil {
			s.Text = sup.Segment.Text
		}
		for _, idx := range sup.GroundingChunkIndices {
			s.ChunkIndices = append(s.ChunkIndices, int(idx))
		}
		out.Supports = append(out.Supports, s)
	}
	return out
}
