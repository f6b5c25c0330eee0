package speech

import (
	"context"
	"sync"

	"github.com/verbatimlabs/verbatim-core/internal/protocol"
)

// Mock is an in-memory Engine for tests.
type Mock struct {
	mu       sync.Mutex
	started  []protocol.SpeechStartRequest
	stopped  []string
	StartErr error
	StopErr  error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) StartLive(_ context.Context, req protocol.SpeechStartRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.started = append(m.started, req)
	return nil
}

func (m *Mock) StopLive(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, noteID)
	return m.StopErr
}

// Started returns the live sessions begun so far.
func (m *Mock) Started() []protocol.SpeechStartRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.SpeechStartRequest(nil), m.started...)
}

// Stopped returns the note IDs whose live sessions were stopped.
func (m *Mock) Stopped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stopped...)
}

var _ Engine = (*Mock)(nil)
