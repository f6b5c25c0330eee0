// Package summarize turns a finished session's transcript into a stored
// summary and a note title.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/verbatimlabs/verbatim-core/internal/ai"
	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/protocol"
	"github.com/verbatimlabs/verbatim-core/internal/store"
	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

// ErrBusy is returned when a generation is already running.
var ErrBusy = errors.New("summary generation already in progress")

// ErrNoContent is returned when a note has neither transcript nor user notes.
var ErrNoContent = errors.New("nothing to summarize")

// Publisher sends UI-facing events. Satisfied by bus.Client.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Orchestrator runs the post-session pipeline: summary first, then a title
// derived from the summary, then a notes refresh event.
type Orchestrator struct {
	cfg        config.AIConfig
	gen        ai.Generator
	store      *store.Store
	pub        Publisher
	log        *slog.Logger
	generating atomic.Bool
}

func NewOrchestrator(cfg config.AIConfig, gen ai.Generator, st *store.Store, pub Publisher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		gen:   gen,
		store: st,
		pub:   pub,
		log:   log.With(slog.String("component", "summarize")),
	}
}

// OnSessionEnded kicks off the pipeline in the background. Matches the
// session controller's EndedHook signature.
func (o *Orchestrator) OnSessionEnded(noteID string, _ []transcript.Group) {
	if _, _, err := o.Regenerate(context.Background(), noteID, ai.SummaryOverview, ""); err != nil {
		o.log.Error("post-session pipeline failed", slogError(err), slog.String("note_id", noteID))
	}
}

// Regenerate runs the full pipeline for a note: summary, then a title
// derived from that summary, then a notes refresh event. A summary failure
// aborts before any title attempt; a title failure leaves the stored
// summary in place.
func (o *Orchestrator) Regenerate(ctx context.Context, noteID string, summaryType ai.SummaryType, customPrompt string) (store.Summary, string, error) {
	summary, err := o.Generate(ctx, noteID, summaryType, customPrompt)
	if err != nil {
		return store.Summary{}, "", err
	}

	title, err := o.GenerateTitle(ctx, noteID, summary.Content)
	if err != nil {
		return summary, "", err
	}

	if err := o.pub.Publish(protocol.SubjectNotesRefresh, protocol.NotesRefresh{NoteID: noteID, Title: title}); err != nil {
		o.log.Warn("notes refresh publish failed", slogError(err))
	}
	return summary, title, nil
}

// Generate produces and stores one summary for a note, streaming partial
// output as events. Only one generation runs at a time.
func (o *Orchestrator) Generate(ctx context.Context, noteID string, summaryType ai.SummaryType, customPrompt string) (store.Summary, error) {
	if o.generating.Swap(true) {
		return store.Summary{}, ErrBusy
	}
	defer o.generating.Store(false)

	text, err := o.noteTranscript(ctx, noteID)
	if err != nil {
		return store.Summary{}, err
	}
	notes, err := o.store.GetNoteDescription(ctx, noteID)
	if err != nil {
		return store.Summary{}, fmt.Errorf("load note description: %w", err)
	}

	hasTranscript := strings.TrimSpace(text) != ""
	hasNotes := strings.TrimSpace(notes) != ""
	if !hasTranscript && !hasNotes {
		return store.Summary{}, ErrNoContent
	}
	if customPrompt == "" {
		customPrompt = "Summarize this note."
	}

	var response string
	switch {
	case hasTranscript && len(text) > ai.MaxContentLength:
		response, err = o.generateChunked(ctx, noteID, summaryType, text, customPrompt, notes)
	case hasTranscript:
		prompt := singlePassPrompt(summaryType, text, customPrompt, notes)
		response, err = o.stream(ctx, noteID, prompt, o.cfg.Temperature, o.cfg.MaxTokens)
	default:
		prompt := ai.NotesOnlyPrompt(summaryType, notes, customPrompt)
		response, err = o.stream(ctx, noteID, prompt, o.cfg.Temperature, o.cfg.MaxTokens)
	}
	if err != nil {
		return store.Summary{}, fmt.Errorf("generate summary: %w", err)
	}

	o.publishStream(noteID, "", true)

	clean := ai.StripThinkingTags(response)
	summary, err := o.store.AddSummary(ctx, noteID, string(summaryType), clean)
	if err != nil {
		return store.Summary{}, fmt.Errorf("store summary: %w", err)
	}
	o.log.Info("summary stored",
		slog.String("note_id", noteID),
		slog.String("type", string(summaryType)),
		slog.Int("chars", len(clean)))
	return summary, nil
}

// GenerateTitle derives a short title from summary content and saves it on
// the note. Falls back to a generic title when the model cannot produce an
// acceptable one.
func (o *Orchestrator) GenerateTitle(ctx context.Context, noteID, summaryContent string) (string, error) {
	truncated := summaryContent
	if runes := []rune(truncated); len(runes) > 2000 {
		truncated = string(runes[:2000]) + "..."
	}
	prompt := ai.TitleFromSummaryPrompt(truncated)

	const maxAttempts = 3
	title := ai.FallbackTitle
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := ai.Collect(ctx, o.gen, ai.Request{
			NoteID:      noteID,
			Prompt:      prompt,
			Temperature: 0.3,
			MaxTokens:   100,
		})
		if err != nil {
			return "", fmt.Errorf("generate title: %w", err)
		}
		candidate := ai.CleanTitleResponse(response)
		if candidate != ai.FallbackTitle && ai.IsValidTitle(candidate) {
			title = candidate
			break
		}
		o.log.Debug("title rejected",
			slog.String("candidate", candidate),
			slog.Int("attempt", attempt))
	}

	if err := o.store.SetNoteTitle(ctx, noteID, title); err != nil {
		return "", fmt.Errorf("save title: %w", err)
	}
	o.log.Info("title set", slog.String("note_id", noteID), slog.String("title", title))
	return title, nil
}

// noteTranscript joins stored transcript segments, skipping artifacts.
func (o *Orchestrator) noteTranscript(ctx context.Context, noteID string) (string, error) {
	segments, err := o.store.GetTranscriptSegments(ctx, noteID)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if transcript.IsArtifact(seg.Text) {
			continue
		}
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " "), nil
}

func (o *Orchestrator) generateChunked(ctx context.Context, noteID string, summaryType ai.SummaryType, text, customPrompt, notes string) (string, error) {
	chunks := ai.SplitChunks(text, ai.MaxContentLength)
	total := len(chunks)
	o.publishStream(noteID, fmt.Sprintf("Processing %d sections...\n\n", total), false)

	chunkSummaries := make([]string, 0, total)
	for i, chunk := range chunks {
		o.publishStream(noteID, fmt.Sprintf("Analyzing section %d of %d...\n", i+1, total), false)
		prompt := ai.ChunkPrompt(summaryType, chunk, customPrompt, i+1, total)
		response, err := ai.Collect(ctx, o.gen, ai.Request{
			NoteID:      noteID,
			Prompt:      prompt,
			Temperature: o.cfg.Temperature,
			MaxTokens:   o.cfg.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("summarize section %d: %w", i+1, err)
		}
		chunkSummaries = append(chunkSummaries, ai.StripThinkingTags(response))
	}

	o.publishStream(noteID, "\nCombining results...\n\n", false)
	merge := ai.MergePrompt(summaryType, chunkSummaries, customPrompt, notes)
	return o.stream(ctx, noteID, merge, o.cfg.Temperature, o.cfg.MaxTokens)
}

// stream runs one generation, forwarding partial chunks as events.
func (o *Orchestrator) stream(ctx context.Context, noteID, prompt string, temperature float64, maxTokens int) (string, error) {
	var out strings.Builder
	err := o.gen.Generate(ctx, ai.Request{
		NoteID:      noteID,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, func(c ai.Chunk) error {
		out.WriteString(c.Content)
		if c.Content != "" {
			o.publishStream(noteID, c.Content, false)
		}
		return nil
	})
	return out.String(), err
}

func (o *Orchestrator) publishStream(noteID, chunk string, done bool) {
	err := o.pub.Publish(protocol.SubjectSummaryStream, protocol.SummaryStreamEvent{
		NoteID: noteID,
		Chunk:  chunk,
		IsDone: done,
	})
	if err != nil {
		o.log.Warn("summary stream publish failed", slogError(err))
	}
}

func singlePassPrompt(summaryType ai.SummaryType, text, customPrompt, notes string) string {
	switch summaryType {
	case ai.SummaryActionItems:
		return ai.ActionItemsPrompt(text, notes)
	case ai.SummaryKeyDecisions:
		return ai.KeyDecisionsPrompt(text, notes)
	case ai.SummaryCustom:
		return ai.CustomPrompt(text, customPrompt, notes)
	default:
		return ai.OverviewPrompt(text, notes)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
