package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/verbatimlabs/verbatim-core/internal/capture"
	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/protocol"
	"github.com/verbatimlabs/verbatim-core/internal/speech"
	"github.com/verbatimlabs/verbatim-core/internal/store"
	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

// EndedHook runs after a session's transcript is persisted. The buffer is a
// copy; the hook may retain it.
type EndedHook func(noteID string, buffer []transcript.Group)

// Controller owns the single active session and serializes all lifecycle
// transitions.
type Controller struct {
	cfg     config.SessionConfig
	capture capture.Controller
	speech  speech.Engine
	store   *store.Store
	log     *slog.Logger
	onEnded EndedHook

	mu    sync.Mutex
	sess  *state
	hooks sync.WaitGroup

	started       metric.Int64Counter
	ended         metric.Int64Counter
	staleBatches  metric.Int64Counter
	mergedBatches metric.Int64Counter
}

func NewController(cfg config.SessionConfig, capt capture.Controller, sp speech.Engine, st *store.Store, onEnded EndedHook, log *slog.Logger) *Controller {
	c := &Controller{
		cfg:     cfg,
		capture: capt,
		speech:  sp,
		store:   st,
		log:     log.With(slog.String("component", "session")),
		onEnded: onEnded,
	}

	meter := otel.Meter("verbatim/session")
	var err error
	if c.started, err = meter.Int64Counter("session_started_total"); err != nil {
		c.log.Warn("metric registration failed", slog.String("error", err.Error()))
	}
	if c.ended, err = meter.Int64Counter("session_ended_total"); err != nil {
		c.log.Warn("metric registration failed", slog.String("error", err.Error()))
	}
	if c.staleBatches, err = meter.Int64Counter("session_stale_batches_total"); err != nil {
		c.log.Warn("metric registration failed", slog.String("error", err.Error()))
	}
	if c.mergedBatches, err = meter.Int64Counter("session_merged_batches_total"); err != nil {
		c.log.Warn("metric registration failed", slog.String("error", err.Error()))
	}
	return c
}

// Snapshot reports the active session, if any.
func (c *Controller) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		NoteID:       c.sess.noteID,
		Phase:        c.sess.phase,
		Mode:         c.sess.mode,
		Groups:       len(c.sess.buffer),
		Transcribing: c.sess.transcribing,
	}, true
}

// resolveMode checks capture capabilities against the persisted preference.
func (c *Controller) resolveMode(ctx context.Context) (AudioMode, error) {
	caps, err := c.capture.Capabilities(ctx)
	if err != nil {
		return "", fmt.Errorf("query capture capabilities: %w", err)
	}
	if !caps.MicAvailable {
		return "", ErrMicUnavailable
	}
	if !caps.MicAuthorized {
		return "", ErrMicPermission
	}

	pref, err := c.store.GetSetting(ctx, SettingAudioMode)
	if err != nil {
		return "", fmt.Errorf("read audio mode setting: %w", err)
	}
	if pref == "" {
		pref = c.cfg.AudioModePreference
	}
	if pref == "mic_only" {
		return ModeMicOnly, nil
	}
	if caps.SystemAudioSupported && caps.SystemAudioAuthorized {
		return ModeDual, nil
	}
	return ModeMicOnly, nil
}

// speakerLabel resolves the label for the user's own speech, preferring the
// stored profile name over the configured default.
func (c *Controller) speakerLabel(ctx context.Context) string {
	label := c.cfg.SpeakerLabel
	if name, err := c.store.GetSetting(ctx, SettingSpeakerName); err == nil && name != "" {
		label = name
	}
	return label
}

// speakerFor builds the label function for merging.
func (c *Controller) speakerFor(ctx context.Context) transcript.SpeakerFunc {
	label := c.speakerLabel(ctx)
	others := c.cfg.OthersLabel
	return func(src transcript.Source) string {
		if src == transcript.SourceSystem {
			return others
		}
		return label
	}
}

func (c *Controller) startSpeech(ctx context.Context, noteID, language, speaker string) error {
	return c.speech.StartLive(ctx, protocol.SpeechStartRequest{
		NoteID:   noteID,
		Language: language,
		Speaker:  speaker,
	})
}

// Start begins recording a new session for noteID, creating the note when it
// does not exist. An empty noteID allocates a fresh one.
func (c *Controller) Start(ctx context.Context, noteID, micID, language string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return "", ErrSessionActive
	}

	if noteID == "" {
		noteID = uuid.NewString()
	}
	if _, err := c.store.GetNote(ctx, noteID); err != nil {
		if !errors.Is(err, store.ErrNoteNotFound) {
			return "", fmt.Errorf("look up note: %w", err)
		}
		if _, err := c.store.CreateNote(ctx, noteID, "Untitled"); err != nil {
			return "", fmt.Errorf("create note: %w", err)
		}
	}

	mode, err := c.resolveMode(ctx)
	if err != nil {
		return "", err
	}

	var result protocol.CaptureResult
	if mode == ModeDual {
		result, err = c.capture.StartDual(ctx, noteID, micID)
	} else {
		result, err = c.capture.Start(ctx, noteID, micID)
	}
	if err != nil {
		return "", fmt.Errorf("start capture: %w", err)
	}

	if err := c.startSpeech(ctx, noteID, language, c.speakerLabel(ctx)); err != nil {
		c.abortCapture(ctx, mode, noteID)
		return "", fmt.Errorf("start live transcription: %w", err)
	}

	segID, offsetMS, err := c.openSegment(ctx, noteID, result)
	if err != nil {
		c.log.Error("audio segment bookkeeping failed", slogError(err), slog.String("note_id", noteID))
	}

	c.sess = &state{
		noteID:        noteID,
		phase:         PhaseRecording,
		mode:          mode,
		dualActive:    mode == ModeDual,
		openSegmentID: segID,
		timeOffsetSec: float64(offsetMS) / 1000,
		micPath:       result.MicPath,
		systemPath:    result.SystemPath,
		transcribing:  true,
	}
	c.count(ctx, c.started)
	c.log.Info("session started",
		slog.String("note_id", noteID),
		slog.String("mode", string(mode)))
	return noteID, nil
}

// Continue reopens an ended note and appends a new recording to it. The
// persisted transcript seeds the merge buffer one group per stored segment.
func (c *Controller) Continue(ctx context.Context, noteID, micID, language string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return ErrSessionActive
	}

	if _, err := c.store.GetNote(ctx, noteID); err != nil {
		return fmt.Errorf("look up note: %w", err)
	}

	segments, err := c.store.GetTranscriptSegments(ctx, noteID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	buffer := make([]transcript.Group, 0, len(segments))
	for _, seg := range segments {
		buffer = append(buffer, transcript.Group{
			Speaker:   seg.Speaker,
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Text:      seg.Text,
		})
	}

	mode, err := c.resolveMode(ctx)
	if err != nil {
		return err
	}

	result, err := c.capture.ContinueNote(ctx, noteID, micID)
	if err != nil {
		return fmt.Errorf("continue capture: %w", err)
	}

	if err := c.startSpeech(ctx, noteID, language, c.speakerLabel(ctx)); err != nil {
		c.abortCapture(ctx, mode, noteID)
		return fmt.Errorf("start live transcription: %w", err)
	}

	if err := c.store.ReopenNote(ctx, noteID); err != nil {
		c.log.Error("reopen note failed", slogError(err), slog.String("note_id", noteID))
	}

	segID, offsetMS, err := c.openSegment(ctx, noteID, result)
	if err != nil {
		c.log.Error("audio segment bookkeeping failed", slogError(err), slog.String("note_id", noteID))
	}

	c.sess = &state{
		noteID:        noteID,
		phase:         PhaseRecording,
		mode:          mode,
		dualActive:    mode == ModeDual,
		buffer:        buffer,
		openSegmentID: segID,
		timeOffsetSec: float64(offsetMS) / 1000,
		micPath:       result.MicPath,
		systemPath:    result.SystemPath,
		transcribing:  true,
	}
	c.count(ctx, c.started)
	c.log.Info("session continued",
		slog.String("note_id", noteID),
		slog.String("mode", string(mode)),
		slog.Int("seeded_groups", len(buffer)))
	return nil
}

// Pause suspends capture and transcription, keeping the merge buffer. In
// mic-only mode capture stops entirely and Resume starts a fresh stream.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNoSession
	}
	if c.sess.phase != PhaseRecording {
		return ErrNotRecording
	}

	if err := c.speech.StopLive(ctx, c.sess.noteID); err != nil {
		c.log.Warn("stop live transcription failed", slogError(err))
	}

	var durationMS int64
	var err error
	if c.sess.dualActive {
		durationMS, err = c.capture.PauseDual(ctx)
	} else {
		var result protocol.CaptureResult
		result, err = c.capture.Stop(ctx)
		durationMS = result.DurationMS
	}
	if err != nil {
		return fmt.Errorf("pause capture: %w", err)
	}

	c.closeSegment(ctx, durationMS)
	c.sess.phase = PhasePaused
	c.sess.transcribing = false
	c.log.Info("session paused",
		slog.String("note_id", c.sess.noteID),
		slog.Int64("segment_ms", durationMS))
	return nil
}

// Resume restarts capture and transcription after a pause.
func (c *Controller) Resume(ctx context.Context, micID, language string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNoSession
	}
	if c.sess.phase != PhasePaused {
		return ErrNotPaused
	}
	noteID := c.sess.noteID

	// A paused dual stream must resume in place. A mic-only pause stopped
	// capture entirely, so the audio mode is re-evaluated and may upgrade
	// to dual if system audio became available meanwhile.
	mode := c.sess.mode
	if !c.sess.dualActive {
		resolved, err := c.resolveMode(ctx)
		if err != nil {
			return err
		}
		mode = resolved
	}

	var result protocol.CaptureResult
	var err error
	switch {
	case c.sess.dualActive:
		result, err = c.capture.ResumeDual(ctx, noteID)
	case mode == ModeDual:
		result, err = c.capture.StartDual(ctx, noteID, micID)
	default:
		result, err = c.capture.Start(ctx, noteID, micID)
	}
	if err != nil {
		return fmt.Errorf("resume capture: %w", err)
	}

	freshStream := !c.sess.dualActive
	if err := c.startSpeech(ctx, noteID, language, c.speakerLabel(ctx)); err != nil {
		c.abortCapture(ctx, mode, noteID)
		return fmt.Errorf("start live transcription: %w", err)
	}

	segID, offsetMS, segErr := c.openSegment(ctx, noteID, result)
	if segErr != nil {
		c.log.Error("audio segment bookkeeping failed", slogError(segErr), slog.String("note_id", noteID))
	}
	c.sess.openSegmentID = segID
	if freshStream {
		// A fresh capture stream restarts fragment clocks at zero.
		c.sess.timeOffsetSec = float64(offsetMS) / 1000
	}
	c.sess.mode = mode
	c.sess.dualActive = mode == ModeDual
	c.sess.phase = PhaseRecording
	c.sess.transcribing = true
	c.log.Info("session resumed",
		slog.String("note_id", noteID),
		slog.String("mode", string(mode)))
	return nil
}

// Stop ends the session, persists the transcript, and marks the note ended.
// Stopping with no active session is a no-op. Collaborator failures do not
// prevent persistence.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	sess := c.sess
	noteID := sess.noteID

	var errs []error
	if err := c.speech.StopLive(ctx, noteID); err != nil {
		errs = append(errs, fmt.Errorf("stop live transcription: %w", err))
	}

	var result protocol.CaptureResult
	var capErr error
	switch {
	case sess.dualActive:
		result, capErr = c.capture.StopDual(ctx, noteID)
	case sess.phase == PhaseRecording:
		result, capErr = c.capture.Stop(ctx)
	default:
		// Mic-only paused sessions already stopped capture.
	}
	if capErr != nil {
		errs = append(errs, fmt.Errorf("stop capture: %w", capErr))
	}
	if sess.phase == PhaseRecording && capErr == nil {
		c.closeSegment(ctx, result.DurationMS)
	}

	audioPath := result.PlaybackPath
	if audioPath == "" {
		audioPath = sess.micPath
	}

	if err := c.store.SaveTranscript(ctx, noteID, sess.buffer); err != nil {
		errs = append(errs, fmt.Errorf("persist transcript: %w", err))
	}
	if err := c.store.MarkNoteEnded(ctx, noteID, audioPath); err != nil {
		errs = append(errs, fmt.Errorf("mark note ended: %w", err))
	}

	if len(sess.buffer) > 0 && c.onEnded != nil {
		buffer := append([]transcript.Group(nil), sess.buffer...)
		c.hooks.Add(1)
		go func() {
			defer c.hooks.Done()
			c.onEnded(noteID, buffer)
		}()
	}

	c.sess = nil
	c.count(ctx, c.ended)
	c.log.Info("session stopped",
		slog.String("note_id", noteID),
		slog.Int("groups", len(sess.buffer)))
	return errors.Join(errs...)
}

// Wait blocks until in-flight ended hooks return. Called during shutdown so
// the hook never outlives the store and bus it writes to.
func (c *Controller) Wait() {
	c.hooks.Wait()
}

// HandleUpdate folds one transcription batch into the active session's
// buffer. Batches for other notes are dropped; artifact fragments are
// filtered before merging.
func (c *Controller) HandleUpdate(update protocol.TranscriptionUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.noteID != update.NoteID {
		c.count(context.Background(), c.staleBatches)
		c.log.Debug("dropping stale transcription batch", slog.String("note_id", update.NoteID))
		return
	}

	source := transcript.ParseSource(update.AudioSource)
	fragments := make([]transcript.Fragment, 0, len(update.Segments))
	for _, seg := range update.Segments {
		if transcript.IsArtifact(seg.Text) {
			continue
		}
		fragments = append(fragments, transcript.Fragment{
			StartTime: seg.StartTime + c.sess.timeOffsetSec,
			EndTime:   seg.EndTime + c.sess.timeOffsetSec,
			Text:      seg.Text,
			Source:    source,
		})
	}
	if len(fragments) > 0 {
		c.sess.buffer = transcript.Merge(c.sess.buffer, fragments, c.speakerFor(context.Background()))
		c.count(context.Background(), c.mergedBatches)
	}
	if update.IsFinal {
		c.sess.transcribing = false
	}
}

// Buffer returns a copy of the active session's merged transcript.
func (c *Controller) Buffer() []transcript.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return append([]transcript.Group(nil), c.sess.buffer...)
}

// Level reports the current input level for UI meters.
func (c *Controller) Level(ctx context.Context) (float64, error) {
	return c.capture.Level(ctx)
}

// openSegment records the start of a new audio segment and returns its row
// id and the note-relative start offset.
func (c *Controller) openSegment(ctx context.Context, noteID string, result protocol.CaptureResult) (int64, int64, error) {
	index, err := c.store.NextSegmentIndex(ctx, noteID)
	if err != nil {
		return 0, 0, err
	}
	offsetMS, err := c.store.TotalSegmentDuration(ctx, noteID)
	if err != nil {
		return 0, 0, err
	}
	segID, err := c.store.AddAudioSegment(ctx, noteID, index, result.MicPath, result.SystemPath, offsetMS)
	if err != nil {
		return 0, 0, err
	}
	return segID, offsetMS, nil
}

// closeSegment finalizes the open audio segment, if any.
func (c *Controller) closeSegment(ctx context.Context, durationMS int64) {
	if c.sess.openSegmentID == 0 {
		return
	}
	if err := c.store.CloseAudioSegment(ctx, c.sess.openSegmentID, durationMS); err != nil {
		c.log.Error("close audio segment failed", slogError(err), slog.String("note_id", c.sess.noteID))
	}
	c.sess.openSegmentID = 0
}

// abortCapture unwinds a capture start whose follow-up step failed.
func (c *Controller) abortCapture(ctx context.Context, mode AudioMode, noteID string) {
	var err error
	if mode == ModeDual {
		_, err = c.capture.StopDual(ctx, noteID)
	} else {
		_, err = c.capture.Stop(ctx)
	}
	if err != nil {
		c.log.Warn("abort capture failed", slogError(err), slog.String("note_id", noteID))
	}
}

func (c *Controller) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
