package chunking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// SemanticChunker groups whole sentences or paragraphs into chunks of at most
// maxSize characters. A single unit longer than maxSize is emitted whole.
type SemanticChunker struct {
	splitBy SplitBy
	maxSize int
}

var _ Chunker = (*SemanticChunker)(nil)

// NewSemanticChunker creates a semantic chunker.
func NewSemanticChunker(splitBy SplitBy, maxSize int) *SemanticChunker {
	return &SemanticChunker{splitBy: splitBy, maxSize: maxSize}
}

// Chunk implements Chunker.
func (s *SemanticChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	switch s.splitBy {
	case SplitSentence:
		return s.bySentence(text)
	case SplitParagraph:
		return s.byParagraph(text)
	default:
		return []string{}
	}
}

func (s *SemanticChunker) bySentence(text string) []string {
	chunks := []string{}
	current := ""
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current != "" && runeLen(current)+runeLen(sentence)+1 > s.maxSize {
			chunks = append(chunks, current)
			current = sentence
			continue
		}
		current = strings.TrimSpace(current + " " + sentence)
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func (s *SemanticChunker) byParagraph(text string) []string {
	chunks := []string{}
	current := ""
	for _, paragraph := range paragraphBreak.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if runeLen(paragraph) > s.maxSize {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, s.bySentence(paragraph)...)
			continue
		}

		if current != "" && runeLen(current)+runeLen(paragraph)+2 > s.maxSize {
			chunks = append(chunks, current)
			current = paragraph
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current = current + "\n\n" + paragraph
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSentences splits text after '.', '!' or '?' wherever the punctuation
// is followed by whitespace. The whitespace run is dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i
		for i < len(text) {
			next, nsize := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(next) {
				break
			}
			i += nsize
		}
		if i > end {
			sentences = append(sentences, text[start:end])
			start = i
		}
	}
	return append(sentences, text[start:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
