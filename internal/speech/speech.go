// Package speech talks to the live transcription collaborator.
package speech

import (
	"context"

	"github.com/verbatimlabs/verbatim-core/internal/protocol"
)

// Engine starts and stops live transcription for a note. Fragment batches
// produced while live are delivered separately through Subscribe.
type Engine interface {
	StartLive(ctx context.Context, req protocol.SpeechStartRequest) error
	StopLive(ctx context.Context, noteID string) error
}

// UpdateHandler receives one transcription batch. Handlers for a single
// subscription are invoked sequentially in arrival order.
type UpdateHandler func(protocol.TranscriptionUpdate)
