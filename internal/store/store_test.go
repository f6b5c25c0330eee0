package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "verbatim.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNoteLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	note, err := s.CreateNote(ctx, "note-1", "Untitled")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.EndedAt != nil {
		t.Fatal("new note should not be ended")
	}

	if err := s.MarkNoteEnded(ctx, "note-1", "/tmp/note-1.wav"); err != nil {
		t.Fatalf("mark ended: %v", err)
	}
	note, err = s.GetNote(ctx, "note-1")
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if note.EndedAt == nil || note.AudioPath != "/tmp/note-1.wav" {
		t.Fatalf("unexpected ended note: %+v", note)
	}

	if err := s.ReopenNote(ctx, "note-1"); err != nil {
		t.Fatalf("reopen note: %v", err)
	}
	note, err = s.GetNote(ctx, "note-1")
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if note.EndedAt != nil {
		t.Fatal("reopened note should not be ended")
	}

	if err := s.SetNoteTitle(ctx, "note-1", "Roadmap Sync"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	note, _ = s.GetNote(ctx, "note-1")
	if note.Title != "Roadmap Sync" {
		t.Fatalf("expected title update, got %q", note.Title)
	}
}

func TestMissingNoteErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, err := s.GetNote(ctx, "nope"); err != ErrNoteNotFound {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if err := s.ReopenNote(ctx, "nope"); err != ErrNoteNotFound {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestSaveTranscriptReplaces(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if _, err := s.CreateNote(ctx, "note-1", "Untitled"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	first := []transcript.Group{
		{Speaker: "Me", StartTime: 0, EndTime: 3, Text: "hello"},
	}
	if err := s.SaveTranscript(ctx, "note-1", first); err != nil {
		t.Fatalf("save transcript: %v", err)
	}

	second := []transcript.Group{
		{Speaker: "Me", StartTime: 0, EndTime: 3, Text: "hello"},
		{Speaker: "Others", StartTime: 3, EndTime: 6, Text: "hi there"},
	}
	if err := s.SaveTranscript(ctx, "note-1", second); err != nil {
		t.Fatalf("save transcript: %v", err)
	}

	segments, err := s.GetTranscriptSegments(ctx, "note-1")
	if err != nil {
		t.Fatalf("get segments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected replace to leave 2 rows, got %d", len(segments))
	}
	if segments[0].Speaker != "Me" || segments[1].Speaker != "Others" {
		t.Fatalf("unexpected speakers: %+v", segments)
	}
}

func TestAudioSegmentOffsets(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if _, err := s.CreateNote(ctx, "note-1", "Untitled"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	index, err := s.NextSegmentIndex(ctx, "note-1")
	if err != nil || index != 0 {
		t.Fatalf("expected first index 0, got %d err %v", index, err)
	}

	id, err := s.AddAudioSegment(ctx, "note-1", 0, "/rec/n1_mic_seg0.wav", "/rec/n1_sys_seg0.wav", 0)
	if err != nil {
		t.Fatalf("add segment: %v", err)
	}
	if err := s.CloseAudioSegment(ctx, id, 4200); err != nil {
		t.Fatalf("close segment: %v", err)
	}

	index, err = s.NextSegmentIndex(ctx, "note-1")
	if err != nil || index != 1 {
		t.Fatalf("expected next index 1, got %d err %v", index, err)
	}
	offset, err := s.TotalSegmentDuration(ctx, "note-1")
	if err != nil || offset != 4200 {
		t.Fatalf("expected offset 4200, got %d err %v", offset, err)
	}

	if _, err := s.AddAudioSegment(ctx, "note-1", 1, "/rec/n1_mic_seg1.wav", "", offset); err != nil {
		t.Fatalf("add second segment: %v", err)
	}
	segments, err := s.GetAudioSegments(ctx, "note-1")
	if err != nil {
		t.Fatalf("get segments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].DurationMS == nil || *segments[0].DurationMS != 4200 {
		t.Fatalf("expected closed first segment, got %+v", segments[0])
	}
	if segments[1].DurationMS != nil {
		t.Fatal("open segment should have nil duration")
	}
	if segments[1].StartOffsetMS != 4200 {
		t.Fatalf("expected second segment offset 4200, got %d", segments[1].StartOffsetMS)
	}
	if segments[1].SystemPath != "" {
		t.Fatalf("expected empty system path, got %q", segments[1].SystemPath)
	}
}

func TestSummariesAndSettings(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if _, err := s.CreateNote(ctx, "note-1", "Untitled"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	if _, err := s.AddSummary(ctx, "note-1", "overview", "We discussed the roadmap."); err != nil {
		t.Fatalf("add summary: %v", err)
	}
	summaries, err := s.GetSummaries(ctx, "note-1")
	if err != nil {
		t.Fatalf("get summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Type != "overview" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	if v, err := s.GetSetting(ctx, "speaker_name"); err != nil || v != "" {
		t.Fatalf("unset setting should be empty, got %q err %v", v, err)
	}
	if err := s.SetSetting(ctx, "speaker_name", "Dana"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if err := s.SetSetting(ctx, "speaker_name", "Sam"); err != nil {
		t.Fatalf("overwrite setting: %v", err)
	}
	if v, _ := s.GetSetting(ctx, "speaker_name"); v != "Sam" {
		t.Fatalf("expected upsert to Sam, got %q", v)
	}
}
