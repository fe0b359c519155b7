package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mohammad-safakhou/gemsearch/models"
)

func TestToReplyWithoutGrounding(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("plain answer", genai.RoleModel),
		}},
	}
	reply, err := toReply(resp)
	require.NoError(t, err)
	assert.Equal(t, "plain answer", reply.Text)
	assert.Nil(t, reply.Grounding)
}

func TestToReplyMapsGrounding(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("Summary: Sunny.", genai.RoleModel),
			GroundingMetadata: &genai.GroundingMetadata{
				WebSearchQueries: []string{"weather today"},
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
					nil,
					{Web: &genai.GroundingChunkWeb{URI: "https://b.example", Title: "B"}},
				},
				GroundingSupports: []*genai.GroundingSupport{
					{Segment: &genai.Segment{Text: "Sunny."}, GroundingChunkIndices: []int32{0, 2}},
					{GroundingChunkIndices: []int32{2}},
				},
			},
		}},
	}

	reply, err := toReply(resp)
	require.NoError(t, err)
	require.NotNil(t, reply.Grounding)
	assert.Equal(t, []models.GroundingChunk{
		{URI: "https://a.example", Title: "A"},
		{},
		{URI: "https://b.example", Title: "B"},
	}, reply.Grounding.Chunks)
	assert.Equal(t, []models.GroundingSupport{
		{Text: "Sunny.", ChunkIndices: []int{0, 2}},
		{Text: "", ChunkIndices: []int{2}},
	}, reply.Grounding.Supports)
	assert.Equal(t, []string{"weather today"}, reply.Grounding.WebSearchQueries)
}

func TestToReplyNoCandidates(t *testing.T) {
	_, err := toReply(&genai.GenerateContentResponse{})
	var upErr *models.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Contains(t, upErr.Message, "no candidates")
}

func TestToReplyBlockedPrompt(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason:        genai.BlockedReasonSafety,
			BlockReasonMessage: "unsafe",
		},
	}
	_, err := toReply(resp)
	var upErr *models.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Contains(t, upErr.Message, "prompt blocked")
	assert.Contains(t, upErr.Message, "unsafe")
}

func TestNewRequiresKeyAndModel(t *testing.T) {
	_, err := New(context.Background(), Options{Model: "m"})
	require.Error(t, err)
	_, err = New(context.Background(), Options{APIKey: "k"})
	require.Error(t, err)
}

const groundedResponse = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "Summary: Sunny."}]},
    "groundingMetadata": {
      "groundingChunks": [{"web": {"uri": "https://a.example", "title": "A"}}],
      "groundingSupports": [{"segment": {"text": "Sunny."}, "groundingChunkIndices": [0]}]
    }
  }]
}`

type recorder struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	status := r.status
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
		return
	}
	_, _ = w.Write([]byte(groundedResponse))
}

func newTestClient(t *testing.T, rec *recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Options{
		APIKey:          "test-key",
		Model:           "gemini-test",
		Temperature:     0.9,
		TopP:            1,
		TopK:            1,
		MaxOutputTokens: 2048,
		BaseURL:         srv.URL + "/",
		HTTPClient:      srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestConversationRoundTrip(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, rec)

	conv, err := c.StartConversation(context.Background())
	require.NoError(t, err)
	rec.mu.Lock()
	assert.Empty(t, rec.bodies, "starting a conversation must not call the API")
	rec.mu.Unlock()

	reply, err := conv.SendMessage(context.Background(), "first question")
	require.NoError(t, err)
	assert.Equal(t, "Summary: Sunny.", reply.Text)
	require.NotNil(t, reply.Grounding)
	assert.Equal(t, "https://a.example", reply.Grounding.Chunks[0].URI)
	assert.Equal(t, []int{0}, reply.Grounding.Supports[0].ChunkIndices)

	_, err = conv.SendMessage(context.Background(), "second question")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.bodies, 2)
	assert.Contains(t, rec.bodies[0], "googleSearch")
	assert.Contains(t, rec.bodies[0], "first question")
	// the chat replays history, so the second turn carries the first
	assert.True(t, strings.Contains(rec.bodies[1], "first question") && strings.Contains(rec.bodies[1], "second question"))
}

func TestConversationUpstreamFailure(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest}
	c := newTestClient(t, rec)

	conv, err := c.StartConversation(context.Background())
	require.NoError(t, err)

	_, err = conv.SendMessage(context.Background(), "anything")
	var upErr *models.UpstreamError
	require.True(t, errors.As(err, &upErr), "got %T: %v", err, err)
	assert.NotEmpty(t, upErr.Error())
}
