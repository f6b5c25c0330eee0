package capture

import (
	"context"
	"sync"

	"github.com/verbatimlabs/verbatim-core/internal/protocol"
)

// Mock is an in-memory Controller for tests. Calls are recorded in order;
// errors and results can be scripted per method.
type Mock struct {
	mu    sync.Mutex
	calls []string

	Caps       protocol.Capabilities
	CapsErr    error
	Result     protocol.CaptureResult
	Err        error
	PauseMS    int64
	PauseErr   error
	InputLevel float64
}

func NewMock() *Mock {
	return &Mock{
		Caps: protocol.Capabilities{
			MicAvailable:          true,
			MicAuthorized:         true,
			SystemAudioSupported:  true,
			SystemAudioAuthorized: true,
		},
		Result: protocol.CaptureResult{MicPath: "/tmp/mic.wav", SystemPath: "/tmp/system.wav"},
	}
}

func (m *Mock) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the method names invoked so far, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Mock) Capabilities(context.Context) (protocol.Capabilities, error) {
	m.record("capabilities")
	return m.Caps, m.CapsErr
}

func (m *Mock) Start(_ context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	m.record("start")
	return m.Result, m.Err
}

func (m *Mock) StartDual(_ context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	m.record("start_dual")
	return m.Result, m.Err
}

func (m *Mock) PauseDual(context.Context) (int64, error) {
	m.record("pause_dual")
	return m.PauseMS, m.PauseErr
}

func (m *Mock) ResumeDual(_ context.Context, noteID string) (protocol.CaptureResult, error) {
	m.record("resume_dual")
	return m.Result, m.Err
}

func (m *Mock) ContinueNote(_ context.Context, noteID, micID string) (protocol.CaptureResult, error) {
	m.record("continue")
	return m.Result, m.Err
}

func (m *Mock) Stop(context.Context) (protocol.CaptureResult, error) {
	m.record("stop")
	return m.Result, m.Err
}

func (m *Mock) StopDual(_ context.Context, noteID string) (protocol.CaptureResult, error) {
	m.record("stop_dual")
	return m.Result, m.Err
}

func (m *Mock) Level(context.Context) (float64, error) {
	m.record("level")
	return m.InputLevel, nil
}

var _ Controller = (*Mock)(nil)
