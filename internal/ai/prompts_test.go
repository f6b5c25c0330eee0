package ai

import (
	"strings"
	"testing"
)

func TestSplitChunksShortTextIsSingleChunk(t *testing.T) {
	chunks := SplitChunks("One short sentence.", 100)
	if len(chunks) != 1 || chunks[0] != "One short sentence." {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestSplitChunksEmptyText(t *testing.T) {
	if chunks := SplitChunks("   ", 100); chunks != nil {
		t.Fatalf("expected no chunks, got %q", chunks)
	}
}

func TestSplitChunksPrefersSentenceBoundaries(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("This is a sentence about planning. ", 40))
	chunks := SplitChunks(text, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 200 {
			t.Fatalf("chunk %d exceeds max size: %d", i, len(chunk))
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Fatalf("chunk %d does not end on a sentence boundary: %q", i, chunk)
		}
	}
}

func TestSplitChunksForceSplitsLongSentence(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 100))
	chunks := SplitChunks(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected force split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Fatalf("chunk %d exceeds max size: %d", i, len(chunk))
		}
	}
}

func TestParseSummaryType(t *testing.T) {
	if ParseSummaryType("action_items") != SummaryActionItems {
		t.Fatal("action_items should parse")
	}
	if ParseSummaryType("bogus") != SummaryOverview {
		t.Fatal("unknown type should default to overview")
	}
}

func TestChunkAndMergePromptsCarryContent(t *testing.T) {
	chunk := ChunkPrompt(SummaryOverview, "we decided to ship", "", 1, 3)
	if !strings.Contains(chunk, "part 1 of 3") || !strings.Contains(chunk, "we decided to ship") {
		t.Fatalf("chunk prompt missing content: %q", chunk)
	}
	merged := MergePrompt(SummaryOverview, []string{"first part", "second part"}, "", "context notes")
	if !strings.Contains(merged, "--- Part 1 ---") || !strings.Contains(merged, "second part") {
		t.Fatalf("merge prompt missing sections: %q", merged)
	}
	if !strings.Contains(merged, "context notes") {
		t.Fatalf("merge prompt missing notes: %q", merged)
	}
}
