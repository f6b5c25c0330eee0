// Package capture talks to the native audio capture collaborator.
package capture

import (
	"context"

	"github.com/verbatimlabs/verbatim-core/internal/protocol"
)

// Controller is the narrow command surface of the capture collaborator.
// Dual commands drive mic+system capture; Start/Stop drive mic-only capture.
type Controller interface {
	Capabilities(ctx context.Context) (protocol.Capabilities, error)
	Start(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error)
	StartDual(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error)
	PauseDual(ctx context.Context) (int64, error)
	ResumeDual(ctx context.Context, noteID string) (protocol.CaptureResult, error)
	ContinueNote(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error)
	Stop(ctx context.Context) (protocol.CaptureResult, error)
	StopDual(ctx context.Context, noteID string) (protocol.CaptureResult, error)
	Level(ctx context.Context) (float64, error)
}
