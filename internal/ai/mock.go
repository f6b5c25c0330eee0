package ai

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	content := "[mock completion for " + strings.TrimSpace(req.Prompt) + "]"
	return consumer(Chunk{
		NoteID:  req.NoteID,
		Content: content,
		Partial: false,
		Latency: 20 * time.Millisecond,
	})
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request, consumer func(Chunk) error) error

func (f GeneratorFunc) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	return f(ctx, req, consumer)
}
