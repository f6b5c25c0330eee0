package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verbatimlabs/verbatim-core/internal/bus"
	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/protocol"
)

// NATSEngine issues speech commands over the bus.
type NATSEngine struct {
	conn    *nats.Conn
	timeout time.Duration
	log     *slog.Logger
}

func NewNATSEngine(client *bus.Client, cfg config.SpeechConfig, log *slog.Logger) *NATSEngine {
	return &NATSEngine{
		conn:    client.Conn(),
		timeout: time.Duration(cfg.RequestTimeout) * time.Millisecond,
		log:     log.With(slog.String("component", "speech")),
	}
}

func (e *NATSEngine) command(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", subject, err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	msg, err := e.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	var reply protocol.SpeechReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	if !reply.OK {
		return fmt.Errorf("speech collaborator: %s", reply.Error)
	}
	return nil
}

func (e *NATSEngine) StartLive(ctx context.Context, req protocol.SpeechStartRequest) error {
	return e.command(ctx, protocol.SubjectSpeechStartLive, req)
}

func (e *NATSEngine) StopLive(ctx context.Context, noteID string) error {
	return e.command(ctx, protocol.SubjectSpeechStopLive, protocol.CaptureRequest{NoteID: noteID})
}

// Subscribe delivers transcription batches to handler. NATS dispatches
// messages for one subscription in order, which preserves the collaborator's
// batch ordering. Undecodable payloads are logged and dropped.
func (e *NATSEngine) Subscribe(handler UpdateHandler) (*nats.Subscription, error) {
	return e.conn.Subscribe(protocol.SubjectTranscriptionUpdate, func(msg *nats.Msg) {
		var update protocol.TranscriptionUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			e.log.Warn("dropping malformed transcription update", slog.String("error", err.Error()))
			return
		}
		handler(update)
	})
}

var _ Engine = (*NATSEngine)(nil)
