package models

// GroundingChunk is one candidate web document the upstream answer may cite.
// Its identity is its position in GroundingMetadata.Chunks.
type GroundingChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingSupport ties a span of the answer text to the chunks backing it.
type GroundingSupport struct {
	Text         string `json:"text"`
	ChunkIndices []int  `json:"chunk_indices"`
}

// GroundingMetadata is the search evidence attached to a grounded answer.
// A nil *GroundingMetadata means the upstream did not run a grounded search.
type GroundingMetadata struct {
	Chunks           []GroundingChunk   `json:"chunks"`
	Supports         []GroundingSupport `json:"supports"`
	WebSearchQueries []string           `json:"web_search_queries,omitempty"`
}

// Reply is the raw result of one conversation turn.
type Reply struct {
	Text      string
	Grounding *GroundingMetadata
}

// Source is a caller-facing cited document, unique by URL.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResult answers a new search and carries the session id for follow-ups.
type SearchResult struct {
	SessionID string   `json:"sessionId"`
	Summary   string   `json:"summary"`
	Sources   []Source `json:"sources"`
}

// FollowUpResult answers a follow-up turn inside an existing session.
type FollowUpResult struct {
	Summary string   `json:"summary"`
	Sources []Source `json:"sources"`
}
