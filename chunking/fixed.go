package chunking

import "strings"

// FixedChunker cuts text into windows of size characters whose starts are
// size-overlap characters apart.
type FixedChunker struct {
	size    int
	overlap int
}

var _ Chunker = (*FixedChunker)(nil)

// NewFixedChunker creates a fixed window chunker.
// When overlap >= size only the first window is produced.
func NewFixedChunker(size, overlap int) *FixedChunker {
	return &FixedChunker{size: size, overlap: overlap}
}

// Chunk implements Chunker. Sizes are counted in characters, not bytes.
func (f *FixedChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" || f.size <= 0 {
		return []string{}
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/f.size+1)
	for start := 0; start < len(runes); start += f.size - f.overlap {
		end := min(start+f.size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		// A non-advancing window would never reach the end of the text
		if f.overlap >= f.size {
			break
		}
	}
	return chunks
}
