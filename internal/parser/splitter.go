package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkResult represents a chunk of policy content.
type ChunkResult struct {
	Content     string
	Position    int
	HeadingPath string // Section context
}

// ChunkConfig defines token-based chunking parameters.
type ChunkConfig struct {
	// ChunkSize is the maximum chunk length in cl100k tokens.
	ChunkSize int
	// Overlap is the token overlap between adjacent chunks.
	Overlap int
}

// DefaultChunkConfig returns the policy indexing defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 500,
		Overlap:   50,
	}
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// TokenCount returns the cl100k token length of text.
// Falls back to a rune-based estimate if the codec is unavailable.
func TokenCount(text string) int {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if codecErr != nil {
		return len([]rune(text))/4 + 1
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len([]rune(text))/4 + 1
	}
	return len(ids)
}

// SplitPolicy splits a policy into token-bounded chunks, section by section,
// so each chunk carries the heading path it came from.
func SplitPolicy(doc *PolicyDoc, cfg ChunkConfig) ([]ChunkResult, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithLenFunc(TokenCount),
	)

	sections := doc.Sections
	if len(sections) == 0 && strings.TrimSpace(doc.Content) != "" {
		sections = []Section{{Content: doc.Content}}
	}

	var chunks []ChunkResult
	for _, sec := range sections {
		parts, err := splitter.SplitText(sec.Content)
		if err != nil {
			return nil, fmt.Errorf("split section %q: %w", sec.Path, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, ChunkResult{
				Content:     part,
				Position:    len(chunks),
				HeadingPath: sec.Path,
			})
		}
	}
	return chunks, nil
}
