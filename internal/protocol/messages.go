package protocol

import "time"

// Subjects for request/reply commands served by the native capture collaborator.
const (
	SubjectAudioCapabilities = "audio.cmd.capabilities"
	SubjectAudioStart        = "audio.cmd.start"
	SubjectAudioStartDual    = "audio.cmd.start_dual"
	SubjectAudioPauseDual    = "audio.cmd.pause_dual"
	SubjectAudioResumeDual   = "audio.cmd.resume_dual"
	SubjectAudioContinue     = "audio.cmd.continue"
	SubjectAudioStop         = "audio.cmd.stop"
	SubjectAudioStopDual     = "audio.cmd.stop_dual"
	SubjectAudioLevel        = "audio.cmd.level"
)

// Subjects for the speech collaborator.
const (
	SubjectSpeechStartLive     = "speech.cmd.start_live"
	SubjectSpeechStopLive      = "speech.cmd.stop_live"
	SubjectTranscriptionUpdate = "speech.transcription.update"
)

// Subjects published by the daemon for UI consumers.
const (
	SubjectSummaryStream = "ai.summary.stream"
	SubjectNotesRefresh  = "notes.refresh"
)

// Subjects for request/reply session commands served by the daemon.
const (
	SubjectSessionStart    = "session.cmd.start"
	SubjectSessionPause    = "session.cmd.pause"
	SubjectSessionResume   = "session.cmd.resume"
	SubjectSessionContinue = "session.cmd.continue"
	SubjectSessionStop     = "session.cmd.stop"
	SubjectSessionStatus   = "session.cmd.status"
	SubjectSessionLevel    = "session.cmd.level"
	SubjectSummarize       = "ai.cmd.summarize"
)

// SessionRequest addresses a session command.
type SessionRequest struct {
	NoteID   string `json:"note_id,omitempty"`
	MicID    string `json:"mic_id,omitempty"`
	Language string `json:"language,omitempty"`
}

// SessionReply acknowledges a session command.
type SessionReply struct {
	NoteID string `json:"note_id,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// SessionStatus describes the active session, if any.
type SessionStatus struct {
	Active       bool   `json:"active"`
	NoteID       string `json:"note_id,omitempty"`
	Phase        string `json:"phase,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Groups       int    `json:"groups"`
	Transcribing bool   `json:"transcribing"`
}

// SummarizeRequest asks for a summary to be (re)generated for a note.
type SummarizeRequest struct {
	NoteID       string `json:"note_id"`
	Type         string `json:"type"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// SummarizeReply returns the stored summary content and the title derived
// from it.
type SummarizeReply struct {
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Capabilities reports what the capture collaborator can do on this host.
type Capabilities struct {
	MicAvailable          bool `json:"mic_available"`
	MicAuthorized         bool `json:"mic_authorized"`
	SystemAudioSupported  bool `json:"system_audio_supported"`
	SystemAudioAuthorized bool `json:"system_audio_authorized"`
}

// CaptureRequest addresses a capture command at one note.
type CaptureRequest struct {
	NoteID string `json:"note_id"`
	MicID  string `json:"mic_id,omitempty"`
}

// CaptureResult carries the recording paths returned by start/stop commands.
// SystemPath is empty when only the microphone track exists.
type CaptureResult struct {
	MicPath      string `json:"mic_path"`
	SystemPath   string `json:"system_path,omitempty"`
	PlaybackPath string `json:"playback_path,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PauseResult reports the length of the segment that was just closed.
type PauseResult struct {
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// LevelResult is the current input level for live meters, 0.0-1.0.
type LevelResult struct {
	Level float64 `json:"level"`
}

// SpeechStartRequest begins live transcription for a note.
type SpeechStartRequest struct {
	NoteID   string `json:"note_id"`
	Language string `json:"language,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

// SpeechReply acknowledges a speech command.
type SpeechReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TranscriptionFragment is one raw piece of speech-to-text output.
// Times are seconds from the start of the note's recording.
type TranscriptionFragment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// TranscriptionUpdate is the fragment delivery event emitted by the speech
// collaborator while a session records. Batches arrive at least once, in
// order; one batch carries fragments from a single audio source.
type TranscriptionUpdate struct {
	NoteID      string                  `json:"note_id"`
	Segments    []TranscriptionFragment `json:"segments"`
	IsFinal     bool                    `json:"is_final"`
	AudioSource string                  `json:"audio_source"`
	Timestamp   time.Time               `json:"timestamp"`
}

// SummaryStreamEvent carries partial summary text to any rendering consumer.
type SummaryStreamEvent struct {
	NoteID string `json:"note_id"`
	Chunk  string `json:"chunk"`
	IsDone bool   `json:"is_done"`
}

// NotesRefresh asks note-list consumers to reload, e.g. after a title change.
type NotesRefresh struct {
	NoteID string `json:"note_id"`
	Title  string `json:"title,omitempty"`
}
