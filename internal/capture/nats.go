package capture

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

// NATSController issues capture commands over the bus and waits for the
// collaborator's reply.
type NATSController struct {
	conn    *nats.Conn
	timeout time.Duration
	log     *slog.Logger
}

func NewNATSController(client *bus.Client, cfg config.CaptureConfig, log *slog.Logger) *NATSController {
	return &NATSController{
		conn:    client.Conn(),
		timeout: time.Duration(cfg.RequestTimeout) * time.Millisecond,
		log:     log.With(slog.String("component", "capture")),
	}
}

func (c *NATSController) request(ctx context.Context, subject string, payload, reply any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", subject, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return nil
}

func (c *NATSController) captureCall(ctx context.Context, subject, noteID, micID string) (protocol.CaptureResult, error) {
	var res protocol.CaptureResult
	req := protocol.CaptureRequest{NoteID: noteID, MicID: micID}
	if err := c.request(ctx, subject, req, &res); err != nil {
		return protocol.CaptureResult{}, err
	}
	if res.Error != "" {
		return protocol.CaptureResult{}, fmt.Errorf("capture collaborator: %s", res.Error)
	}
	return res, nil
}

func (c *NATSController) Capabilities(ctx context.Context) (protocol.Capabilities, error) {
	var caps protocol.Capabilities
	if err := c.request(ctx, protocol.SubjectAudioCapabilities, struct{}{}, &caps); err != nil {
		return protocol.Capabilities{}, err
	}
	return caps, nil
}

func (c *NATSController) Start(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioStart, noteID, micID)
}

func (c *NATSController) StartDual(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioStartDual, noteID, micID)
}

func (c *NATSController) PauseDual(ctx context.Context) (int64, error) {
	var res protocol.PauseResult
	if err := c.request(ctx, protocol.SubjectAudioPauseDual, struct{}{}, &res); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("capture collaborator: %s", res.Error)
	}
	return res.DurationMS, nil
}

func (c *NATSController) ResumeDual(ctx context.Context, noteID string) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioResumeDual, noteID, "")
}

func (c *NATSController) ContinueNote(ctx context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioContinue, noteID, micID)
}

func (c *NATSController) Stop(ctx context.Context) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioStop, "", "")
}

func (c *NATSController) StopDual(ctx context.Context, noteID string) (protocol.CaptureResult, error) {
	return c.captureCall(ctx, protocol.SubjectAudioStopDual, noteID, "")
}

func (c *NATSController) Level(ctx context.Context) (float64, error) {
	var res protocol.LevelResult
	if err := c.request(ctx, protocol.SubjectAudioLevel, struct{}{}, &res); err != nil {
		return 0, err
	}
	return res.Level, nil
}

var _ Controller = (*NATSController)(nil)
