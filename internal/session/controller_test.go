package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verbatimlabs/verbatim-core/internal/capture"
	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/protocol"
	"github.com/verbatimlabs/verbatim-core/internal/speech"
	"github.com/verbatimlabs/verbatim-core/internal/store"
	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	ctrl    *Controller
	capture *capture.Mock
	speech  *speech.Mock
	store   *store.Store
	ended   chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := newLogger()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "verbatim.db"),
	}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		capture: capture.NewMock(),
		speech:  speech.NewMock(),
		store:   st,
		ended:   make(chan string, 1),
	}
	cfg := config.Default().Session
	f.ctrl = NewController(cfg, f.capture, f.speech, st, func(noteID string, _ []transcript.Group) {
		f.ended <- noteID
	}, log)
	return f
}

func contains(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}

func update(noteID, source string, frags ...protocol.TranscriptionFragment) protocol.TranscriptionUpdate {
	return protocol.TranscriptionUpdate{
		NoteID:      noteID,
		Segments:    frags,
		AudioSource: source,
		Timestamp:   time.Now(),
	}
}

func TestStartPicksDualWhenSystemAudioAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if noteID == "" {
		t.Fatal("expected generated note id")
	}
	if !contains(f.capture.Calls(), "start_dual") {
		t.Fatalf("expected dual capture start, calls: %v", f.capture.Calls())
	}
	if len(f.speech.Started()) != 1 {
		t.Fatal("expected live transcription to start")
	}
	snap, ok := f.ctrl.Snapshot()
	if !ok || snap.Phase != PhaseRecording || snap.Mode != ModeDual {
		t.Fatalf("unexpected snapshot: %+v ok=%v", snap, ok)
	}
	if _, err := f.store.GetNote(ctx, noteID); err != nil {
		t.Fatalf("note should exist: %v", err)
	}
}

func TestStartFallsBackToMicOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.capture.Caps.SystemAudioAuthorized = false

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !contains(f.capture.Calls(), "start") || contains(f.capture.Calls(), "start_dual") {
		t.Fatalf("expected mic-only start, calls: %v", f.capture.Calls())
	}
}

func TestStartHonorsMicOnlySetting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.store.SetSetting(ctx, SettingAudioMode, "mic_only"); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap, _ := f.ctrl.Snapshot()
	if snap.Mode != ModeMicOnly {
		t.Fatalf("expected mic_only mode, got %s", snap.Mode)
	}
}

func TestStartRefusedWithoutMicrophone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.capture.Caps.MicAvailable = false

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); !errors.Is(err, ErrMicUnavailable) {
		t.Fatalf("expected ErrMicUnavailable, got %v", err)
	}
	f.capture.Caps.MicAvailable = true
	f.capture.Caps.MicAuthorized = false
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); !errors.Is(err, ErrMicPermission) {
		t.Fatalf("expected ErrMicPermission, got %v", err)
	}
}

func TestStartRefusedWhileSessionActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.ctrl.Start(ctx, "note-2", "", ""); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestSpeechFailureUnwindsCapture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.speech.StartErr = errors.New("model not loaded")

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err == nil {
		t.Fatal("expected start to fail")
	}
	if !contains(f.capture.Calls(), "stop_dual") {
		t.Fatalf("expected capture unwind, calls: %v", f.capture.Calls())
	}
	if _, ok := f.ctrl.Snapshot(); ok {
		t.Fatal("no session should remain")
	}
}

func TestHandleUpdateMergesAndFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f.ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "hello"},
		protocol.TranscriptionFragment{StartTime: 2, EndTime: 3, Text: "[BLANK_AUDIO]"},
		protocol.TranscriptionFragment{StartTime: 3, EndTime: 5, Text: "world"},
	))
	f.ctrl.HandleUpdate(update(noteID, "system",
		protocol.TranscriptionFragment{StartTime: 5, EndTime: 7, Text: "hi there"},
	))

	buf := f.ctrl.Buffer()
	if len(buf) != 2 {
		t.Fatalf("expected 2 groups, got %+v", buf)
	}
	if buf[0].Speaker != "Me" || buf[0].Text != "hello world" {
		t.Fatalf("unexpected first group: %+v", buf[0])
	}
	if buf[1].Speaker != "Others" || buf[1].Text != "hi there" {
		t.Fatalf("unexpected second group: %+v", buf[1])
	}
}

func TestHandleUpdateDropsStaleBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.ctrl.HandleUpdate(update("other-note", "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "stray"},
	))
	if buf := f.ctrl.Buffer(); len(buf) != 0 {
		t.Fatalf("stale batch should be dropped, got %+v", buf)
	}
}

func TestHandleUpdateUsesStoredSpeakerName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.store.SetSetting(ctx, SettingSpeakerName, "Dana"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.ctrl.HandleUpdate(update("note-1", "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "hello"},
	))
	buf := f.ctrl.Buffer()
	if len(buf) != 1 || buf[0].Speaker != "Dana" {
		t.Fatalf("expected stored speaker name, got %+v", buf)
	}
}

func TestStartPassesStoredSpeakerNameToSpeech(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.store.SetSetting(ctx, SettingSpeakerName, "Dana"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	started := f.speech.Started()
	if len(started) != 1 || started[0].Speaker != "Dana" {
		t.Fatalf("live transcription should get the stored speaker name, got %+v", started)
	}
}

func TestPauseResumePreservesBuffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "before pause"},
	))

	f.capture.PauseMS = 2000
	if err := f.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	snap, _ := f.ctrl.Snapshot()
	if snap.Phase != PhasePaused || snap.Groups != 1 {
		t.Fatalf("unexpected paused snapshot: %+v", snap)
	}
	if !contains(f.capture.Calls(), "pause_dual") {
		t.Fatalf("expected dual pause, calls: %v", f.capture.Calls())
	}
	if err := f.ctrl.Pause(ctx); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("double pause should fail, got %v", err)
	}

	if err := f.ctrl.Resume(ctx, "", ""); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(f.speech.Started()) != 2 {
		t.Fatal("resume should restart live transcription")
	}
	f.ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 2, EndTime: 4, Text: "after resume"},
	))
	buf := f.ctrl.Buffer()
	if len(buf) != 1 || buf[0].Text != "before pause after resume" {
		t.Fatalf("buffer not preserved across pause: %+v", buf)
	}
}

func TestMicOnlyPauseStopsCapture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.capture.Caps.SystemAudioSupported = false

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.capture.Result.DurationMS = 3000
	if err := f.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !contains(f.capture.Calls(), "stop") {
		t.Fatalf("mic-only pause should stop capture, calls: %v", f.capture.Calls())
	}
	if err := f.ctrl.Resume(ctx, "", ""); err != nil {
		t.Fatalf("resume: %v", err)
	}
	calls := f.capture.Calls()
	if calls[len(calls)-1] != "start" {
		t.Fatalf("mic-only resume should start a fresh stream, calls: %v", calls)
	}
}

func TestResumeUpgradesToDualWhenAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.capture.Caps.SystemAudioAuthorized = false

	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	f.capture.Caps.SystemAudioAuthorized = true
	if err := f.ctrl.Resume(ctx, "", ""); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !contains(f.capture.Calls(), "start_dual") {
		t.Fatalf("expected dual upgrade on resume, calls: %v", f.capture.Calls())
	}
	snap, _ := f.ctrl.Snapshot()
	if snap.Mode != ModeDual {
		t.Fatalf("expected dual mode after upgrade, got %s", snap.Mode)
	}
}

func TestStopPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "ship it"},
	))

	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	segments, err := f.store.GetTranscriptSegments(ctx, noteID)
	if err != nil || len(segments) != 1 {
		t.Fatalf("expected persisted transcript, got %v err %v", segments, err)
	}
	note, err := f.store.GetNote(ctx, noteID)
	if err != nil || note.EndedAt == nil {
		t.Fatalf("note should be ended, got %+v err %v", note, err)
	}

	select {
	case got := <-f.ended:
		if got != noteID {
			t.Fatalf("hook got wrong note: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ended hook not invoked")
	}

	// Idempotent: a second stop is a no-op and must not re-notify.
	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	select {
	case <-f.ended:
		t.Fatal("hook invoked twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopWithEmptyBufferSkipsHook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ctrl.Start(ctx, "note-1", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-f.ended:
		t.Fatal("hook should not run for empty transcript")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWaitBlocksUntilEndedHookReturns(t *testing.T) {
	ctx := context.Background()
	log := newLogger()
	st, err := store.Open(ctx, config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "verbatim.db"),
	}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var finished atomic.Bool
	ctrl := NewController(config.Default().Session, capture.NewMock(), speech.NewMock(), st,
		func(string, []transcript.Group) {
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
		}, log)

	noteID, err := ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "shutting down"},
	))
	if err := ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	ctrl.Wait()
	if !finished.Load() {
		t.Fatal("hook still running after Wait returned")
	}
}

func TestContinueSeedsBufferFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.ctrl.HandleUpdate(update(noteID, "microphone",
		protocol.TranscriptionFragment{StartTime: 0, EndTime: 2, Text: "first part"},
	))
	f.ctrl.HandleUpdate(update(noteID, "system",
		protocol.TranscriptionFragment{StartTime: 2, EndTime: 4, Text: "reply"},
	))
	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-f.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("ended hook not invoked")
	}

	if err := f.ctrl.Continue(ctx, noteID, "", ""); err != nil {
		t.Fatalf("continue: %v", err)
	}
	snap, ok := f.ctrl.Snapshot()
	if !ok || snap.Groups != 2 {
		t.Fatalf("expected buffer seeded with 2 groups, got %+v ok=%v", snap, ok)
	}
	if !contains(f.capture.Calls(), "continue") {
		t.Fatalf("expected continue capture call, calls: %v", f.capture.Calls())
	}
	note, err := f.store.GetNote(ctx, noteID)
	if err != nil || note.EndedAt != nil {
		t.Fatalf("note should be reopened, got %+v err %v", note, err)
	}
}

func TestContinueUnknownNoteFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.ctrl.Continue(ctx, "missing", "", ""); !errors.Is(err, store.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestAudioSegmentsTrackPauseResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	noteID, err := f.ctrl.Start(ctx, "", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f.capture.PauseMS = 5000
	if err := f.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.ctrl.Resume(ctx, "", ""); err != nil {
		t.Fatalf("resume: %v", err)
	}

	segments, err := f.store.GetAudioSegments(ctx, noteID)
	if err != nil {
		t.Fatalf("get segments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].DurationMS == nil || *segments[0].DurationMS != 5000 {
		t.Fatalf("first segment should be closed at 5000ms: %+v", segments[0])
	}
	if segments[1].StartOffsetMS != 5000 || segments[1].DurationMS != nil {
		t.Fatalf("second segment should start at 5000ms and be open: %+v", segments[1])
	}
}
