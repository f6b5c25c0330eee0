package ai

import (
	"strings"
	"testing"
)

func TestStripThinkingTags(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"<think>reasoning here</think>Budget Review", "Budget Review"},
		{"<thinking>step one</thinking>\nRoadmap Sync", "Roadmap Sync"},
		{"leaked reasoning</think>Final Answer", "Final Answer"},
		{"Partial output<think>never closed", "Partial output"},
		{"no tags at all", "no tags at all"},
		{"<think>a</think>mid<think>b</think>dle", "middle"},
		{"<THINK>case insensitive</THINK>Quarterly Plan", "Quarterly Plan"},
		{"İstanbul<think>length-changing lowercase before the tag</think> Agenda", "İstanbul Agenda"},
	}
	for _, tc := range cases {
		if got := StripThinkingTags(tc.input); got != tc.want {
			t.Errorf("StripThinkingTags(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestCleanTitleResponse(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Title: \"Budget Review Q3\"", "Budget Review Q3"},
		{"  Roadmap Sync  ", "Roadmap Sync"},
		{"**Launch Retrospective**", "Launch Retrospective"},
		{"Hiring Pipeline\nThis title captures the focus.", "Hiring Pipeline"},
		{"<think>hmm, a title</think>Vendor Selection", "Vendor Selection"},
		{"Could you share more context?", FallbackTitle},
		{"I cannot generate a title from this.", FallbackTitle},
		{"untitled", FallbackTitle},
		{"n/a", FallbackTitle},
		{"Is this about the merger?", FallbackTitle},
		{"", FallbackTitle},
	}
	for _, tc := range cases {
		if got := CleanTitleResponse(tc.input); got != tc.want {
			t.Errorf("CleanTitleResponse(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestCleanTitleResponseCapsLength(t *testing.T) {
	long := strings.Repeat("Budget ", 30)
	got := CleanTitleResponse(long)
	if len([]rune(got)) > 100 {
		t.Fatalf("title not capped: %d runes", len([]rune(got)))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("trailing space left after cap: %q", got)
	}
}

func TestIsValidTitle(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{"Q3 Budget Planning", true},
		{"Vendor Contract Renewal", true},
		{"Rhythm Workshop", true},
		{"ab", false},
		{"1234", false},
		{"aaaaaa", false},
		{"ababab", false},
		{"bcdfghjklm", false},
		{"meeting", false},
		{"Weekly Team Meeting", false},
		{"Here's a title for you", false},
		{"Suggested title: budget", false},
		{"!!!???", false},
	}
	for _, tc := range cases {
		if got := IsValidTitle(tc.title); got != tc.want {
			t.Errorf("IsValidTitle(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}
