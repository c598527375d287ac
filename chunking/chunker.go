package chunking

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragbook/core"
)

// Chunker splits document text into an ordered sequence of non-empty text units.
// Implementations are deterministic and safe for concurrent use.
type Chunker interface {
	// Chunk returns the chunks of text in document order.
	// Empty or whitespace-only input yields an empty slice.
	Chunk(text string) []string
}

// Strategy selects a chunking algorithm.
type Strategy string

const (
	// StrategyFixed slides an overlapping fixed-size window over the text.
	StrategyFixed Strategy = "fixed_len"
	// StrategySemantic groups whole sentences or paragraphs up to a size limit.
	StrategySemantic Strategy = "semantic"
)

// SplitBy selects the unit the semantic strategy accumulates.
type SplitBy string

const (
	SplitSentence  SplitBy = "sentence"
	SplitParagraph SplitBy = "paragraph"
)

// Bounds on chunking parameters.
const (
	MinChunkSize        = 100
	MaxChunkSize        = 2000
	MaxChunkOverlap     = 500
	MinSemanticMaxChunk = 200
)

// ErrUnknownStrategy is returned for a strategy that has no registered constructor.
var ErrUnknownStrategy = errors.New("unknown chunking strategy")

// ErrUnknownSplit is returned for a semantic split unit other than sentence or paragraph.
var ErrUnknownSplit = errors.New("unknown semantic split unit")

// Config holds the parameters of every strategy. Only the fields of the
// selected strategy are consulted.
type Config struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`

	// Fixed strategy
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// Semantic strategy
	SplitBy      SplitBy `yaml:"split_by" json:"split_by"`
	MaxChunkSize int     `yaml:"max_chunk_size" json:"max_chunk_size"`
}

// DefaultConfig returns fixed-length chunking with 500 character windows and
// 50 characters of overlap. Semantic defaults are filled in as well.
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyFixed,
		ChunkSize:    500,
		ChunkOverlap: 50,
		SplitBy:      SplitSentence,
		MaxChunkSize: 1000,
	}
}

// Validate checks the parameters of the selected strategy.
// All failures wrap core.ErrValidation.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixed:
		if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
			return core.Invalidf("chunk_size must be between %d and %d, got %d", MinChunkSize, MaxChunkSize, c.ChunkSize)
		}
		if c.ChunkOverlap < 0 || c.ChunkOverlap > MaxChunkOverlap {
			return core.Invalidf("chunk_overlap must be between 0 and %d, got %d", MaxChunkOverlap, c.ChunkOverlap)
		}
	case StrategySemantic:
		if c.SplitBy != SplitSentence && c.SplitBy != SplitParagraph {
			return fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrUnknownSplit, c.SplitBy)
		}
		if c.MaxChunkSize < MinSemanticMaxChunk {
			return core.Invalidf("max_chunk_size must be at least %d, got %d", MinSemanticMaxChunk, c.MaxChunkSize)
		}
	default:
		return fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrUnknownStrategy, c.Strategy)
	}
	return nil
}

// Params returns the parameters of the selected strategy for recording on a document.
func (c Config) Params() map[string]any {
	switch c.Strategy {
	case StrategyFixed:
		return map[string]any{"chunk_size": c.ChunkSize, "chunk_overlap": c.ChunkOverlap}
	case StrategySemantic:
		return map[string]any{"split_by": string(c.SplitBy), "max_chunk_size": c.MaxChunkSize}
	default:
		return map[string]any{}
	}
}

// constructors maps each strategy to the function that builds it.
var constructors = map[Strategy]func(Config) Chunker{
	StrategyFixed: func(c Config) Chunker {
		return NewFixedChunker(c.ChunkSize, c.ChunkOverlap)
	},
	StrategySemantic: func(c Config) Chunker {
		return NewSemanticChunker(c.SplitBy, c.MaxChunkSize)
	},
}

// Strategies returns the names of all registered strategies.
func Strategies() []Strategy {
	return []Strategy{StrategyFixed, StrategySemantic}
}

// New validates cfg and returns the chunker for its strategy.
func New(cfg Config) (Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctor, ok := constructors[cfg.Strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrUnknownStrategy, cfg.Strategy)
	}
	slog.Debug("selected chunker", "strategy", cfg.Strategy)
	return ctor(cfg), nil
}
