// Package session coordinates one live recording at a time: capture,
// live transcription, the merged transcript buffer, and persistence on stop.
package session

import (
	"errors"

	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

// Phase is the lifecycle state of the active session.
type Phase string

const (
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
)

// AudioMode says which capture streams a session records.
type AudioMode string

const (
	// ModeDual records microphone and system audio as separate streams.
	ModeDual AudioMode = "dual"
	// ModeMicOnly records the microphone only. Pause fully stops capture
	// because partial-stream pause is unsupported.
	ModeMicOnly AudioMode = "mic_only"
)

var (
	ErrSessionActive  = errors.New("a recording session is already active")
	ErrNoSession      = errors.New("no active recording session")
	ErrNotRecording   = errors.New("session is not recording")
	ErrNotPaused      = errors.New("session is not paused")
	ErrMicUnavailable = errors.New("no microphone available")
	ErrMicPermission  = errors.New("microphone access not authorized")
)

// SettingAudioMode is the settings key that overrides the configured audio
// mode preference. Values: auto, mic_only.
const SettingAudioMode = "audio_mode"

// SettingSpeakerName overrides the configured microphone speaker label.
const SettingSpeakerName = "speaker_name"

// state is the mutable record of the active session. The controller guards
// it with its mutex.
type state struct {
	noteID string
	phase  Phase
	mode   AudioMode
	// dualActive is true while a dual capture stream handle is live or
	// paused. A mic-only pause discards the handle entirely, so Resume
	// re-evaluates the audio mode and may upgrade to dual.
	dualActive bool
	buffer     []transcript.Group

	// openSegmentID is the audio_segments row still missing a duration,
	// or 0 when the current segment is closed.
	openSegmentID int64
	// timeOffsetSec shifts fragment times to note-relative time after a
	// capture restart resets the collaborator's clock.
	timeOffsetSec float64

	micPath      string
	systemPath   string
	transcribing bool
}

// Snapshot is the externally visible view of the active session.
type Snapshot struct {
	NoteID       string
	Phase        Phase
	Mode         AudioMode
	Groups       int
	Transcribing bool
}
