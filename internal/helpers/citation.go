package helpers

import (
	"slices"
	"strings"

	"github.com/mohammad-safakhou/gemsearch/models"
)

// ExtractSources turns grounding metadata into the de-duplicated list of cited
// sources. Chunks are visited in index order; the first chunk seen for a URL
// wins and later chunks with the same URL are ignored. Chunks missing either a
// URI or a title are skipped. The snippet of a source is every support text
// that references the chunk's index, joined by a single space.
func ExtractSources(meta *models.GroundingMetadata) []models.Source {
	out := []models.Source{}
	if meta == nil {
		return out
	}

	seen := make(map[string]struct{}, len(meta.Chunks))
	for idx, chunk := range meta.Chunks {
		if chunk.URI == "" || chunk.Title == "" {
			continue
		}
		if _, ok := seen[chunk.URI]; ok {
			continue
		}
		seen[chunk.URI] = struct{}{}
		out = append(out, models.Source{
			Title:   chunk.Title,
			URL:     chunk.URI,
			Snippet: snippetFor(idx, meta.Supports),
		})
	}
	return out
}

func snippetFor(chunkIdx int, supports []models.GroundingSupport) string {
	var parts []string
	for _, s := range supports {
		if slices.Contains(s.ChunkIndices, chunkIdx) {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
