package chat

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/vectorstore"
)

// NoContext is passed to the answer generator when no chunk clears the
// similarity threshold.
const NoContext = "No relevant context found in the document database."

// FilterResults keeps the hits scoring at or above threshold, in rank order,
// and expands them into retrieved contexts.
func FilterResults(results []core.SearchResult, threshold float32) []core.RetrievedContext {
	contexts := make([]core.RetrievedContext, 0, len(results))
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		contexts = append(contexts, core.RetrievedContext{
			ChunkID:   metaString(r.Metadata, vectorstore.MetaChunkID),
			ChunkText: metaString(r.Metadata, vectorstore.MetaChunkText),
			Filename:  metaString(r.Metadata, vectorstore.MetaFilename),
			Score:     r.Score,
			Metadata:  r.Metadata,
		})
	}
	return contexts
}

// BuildContext joins the chunk texts of contexts with blank lines, or returns
// NoContext when nothing usable remains.
func BuildContext(contexts []core.RetrievedContext) string {
	parts := make([]string, 0, len(contexts))
	for _, c := range contexts {
		if strings.TrimSpace(c.ChunkText) != "" {
			parts = append(parts, c.ChunkText)
		}
	}
	if len(parts) == 0 {
		return NoContext
	}
	return strings.Join(parts, "\n\n")
}

// Confirmation is the block appended to an answer after a booking is created.
func Confirmation(b *core.Booking) string {
	return fmt.Sprintf("\n\n✅ Interview booking created successfully!\n"+
		"- Name: %s\n- Email: %s\n- Date: %s\n- Time: %s\n- Booking ID: %s",
		b.Name, b.Email, b.Date, b.Time, b.ID)
}

func metaString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
