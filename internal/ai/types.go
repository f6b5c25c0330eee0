// Package ai provides pluggable text generation backends for summaries
// and titles.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/verbatimlabs/verbatim-core/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	NoteID      string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	NoteID           string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable text generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// NewGenerator builds the backend selected in config.
func NewGenerator(cfg config.AIConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown ai mode %q", cfg.Mode)
	}
}

// Collect runs a request to completion and returns the accumulated text.
func Collect(ctx context.Context, g Generator, req Request) (string, error) {
	var out string
	err := g.Generate(ctx, req, func(c Chunk) error {
		out += c.Content
		return nil
	})
	return out, err
}
