package ai

import (
	"strings"
	"unicode"
)

// FallbackTitle is used when the model cannot produce an acceptable title.
const FallbackTitle = "Meeting Notes"

// StripThinkingTags removes <think>/<thinking> blocks from model output.
// A closing tag without an opening tag drops everything before it; an
// opening tag without a closing tag drops everything after it.
func StripThinkingTags(text string) string {
	result := text
	patterns := [][2]string{
		{"<think>", "</think>"},
		{"<thinking>", "</thinking>"},
	}
	for _, p := range patterns {
		openTag, closeTag := p[0], p[1]
		for {
			if end := asciiIndexFold(result, closeTag); end >= 0 {
				if start := asciiIndexFold(result, openTag); start >= 0 {
					result = result[:start] + result[end+len(closeTag):]
				} else {
					result = result[end+len(closeTag):]
				}
				continue
			}
			if start := asciiIndexFold(result, openTag); start >= 0 {
				result = result[:start]
			}
			break
		}
	}
	return strings.TrimSpace(result)
}

// asciiIndexFold is a case-insensitive strings.Index for ASCII needles. The
// offset indexes the original string, which matters when the haystack holds
// runes whose lowercase form has a different byte length.
func asciiIndexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		j := 0
		for j < n {
			c := s[i+j]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != substr[j] {
				break
			}
			j++
		}
		if j == n {
			return i
		}
	}
	return -1
}

// CleanTitleResponse extracts a usable title from raw model output. Returns
// FallbackTitle when the model answered with a question, refusal, or
// placeholder instead of a title.
func CleanTitleResponse(response string) string {
	cleaned := StripThinkingTags(response)

	// Take only the first non-empty line; ignore any explanation after it.
	firstLine := cleaned
	for _, line := range strings.Split(cleaned, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	withoutPrefix := firstLine
	for _, prefix := range []string{
		"Title:", "title:", "TITLE:",
		"Here's a title:", "Here is a title:",
		"The title is:", "Suggested title:",
	} {
		withoutPrefix = strings.TrimPrefix(withoutPrefix, prefix)
	}
	withoutPrefix = strings.TrimSpace(withoutPrefix)

	title := strings.TrimFunc(withoutPrefix, func(r rune) bool {
		switch r {
		case '"', '\'', '`', '*', '#', '_':
			return true
		}
		return false
	})
	title = strings.TrimSpace(title)

	lower := strings.ToLower(title)
	refusals := []string{"can you", "could you", "please provide", "more details", "more context", "more information"}
	for _, marker := range refusals {
		if strings.Contains(lower, marker) {
			return FallbackTitle
		}
	}
	refusalPrefixes := []string{"i need", "i would need", "unfortunately", "i cannot", "i'm unable"}
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return FallbackTitle
		}
	}
	switch lower {
	case "", "unspecified", "untitled", "n/a", "none", "unknown":
		return FallbackTitle
	}
	if strings.HasSuffix(title, "?") {
		return FallbackTitle
	}

	const maxLen = 100
	if runes := []rune(title); len(runes) > maxLen {
		title = strings.TrimRight(string(runes[:maxLen]), " ")
	}
	return title
}

// nonsenseTitles reject titles that are exactly one of these.
var nonsenseTitles = []string{
	"lorem ipsum", "test title", "title here", "insert title", "placeholder",
	"example", "sample", "asdf", "qwerty",
	"title", "summary", "transcript", "meeting", "note", "notes",
	"untitled meeting", "new meeting", "meeting title", "the title", "a title",
	"discussion", "conversation", "audio", "recording", "call", "chat", "talk",
	"overview", "review", "update", "general", "misc", "miscellaneous",
	"various", "topics", "items", "agenda", "content", "text", "document",
}

// genericOnlyWords reject titles made up entirely of filler vocabulary.
var genericOnlyWords = map[string]bool{
	"meeting": true, "discussion": true, "summary": true, "overview": true,
	"notes": true, "update": true, "review": true, "call": true,
	"conversation": true, "talk": true, "general": true, "team": true,
	"weekly": true, "daily": true, "monthly": true,
}

// promptLeakage reject titles that echo the prompt instead of answering it.
var promptLeakage = []string{
	"2-6 word", "2-6word", "generate a", "just the title", "nothing else",
	"word title for", "title for this", "for this transcript", "for this summary",
	"here is", "here's a", "i would suggest", "i suggest", "my suggestion",
	"based on the", "based on this", "title idea", "any other",
	"name1", "name2", "option1", "option2", "alternative",
	"suggested title", "possible title", "potential title",
	"description", "describe", "we need", "summary:", "main topic",
	"key points", "important",
}

// IsValidTitle rejects gibberish, placeholders, and prompt echoes.
func IsValidTitle(title string) bool {
	if len(title) < 3 {
		return false
	}

	alphaCount := 0
	for _, r := range title {
		if unicode.IsLetter(r) {
			alphaCount++
		}
	}
	if alphaCount < 2 {
		return false
	}

	runes := []rune(title)
	if len(runes) >= 4 {
		same := true
		for _, r := range runes {
			if r != runes[0] {
				same = false
				break
			}
		}
		if same {
			return false
		}
		if len(runes) > 4 && len(runes)%2 == 0 {
			repeating := true
			for i := 0; i+1 < len(runes); i += 2 {
				if runes[i] != runes[0] || runes[i+1] != runes[1] {
					repeating = false
					break
				}
			}
			if repeating {
				return false
			}
		}
	}

	// Long consonant runs are usually decode garbage; allow up to 6 so words
	// like "rhythm" survive.
	lower := strings.ToLower(title)
	streak, maxStreak := 0, 0
	for _, r := range lower {
		if unicode.IsLetter(r) {
			if strings.ContainsRune("aeiou", r) {
				streak = 0
			} else {
				streak++
				if streak > maxStreak {
					maxStreak = streak
				}
			}
		} else {
			streak = 0
		}
	}
	if maxStreak > 6 {
		return false
	}

	meaningful := 0
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			meaningful++
		}
	}
	if meaningful < len(runes)/2 {
		return false
	}

	trimmed := strings.TrimSpace(lower)
	for _, pattern := range nonsenseTitles {
		if trimmed == pattern {
			return false
		}
	}

	words := strings.Fields(trimmed)
	if len(words) > 0 {
		allGeneric := true
		for _, w := range words {
			if !genericOnlyWords[w] {
				allGeneric = false
				break
			}
		}
		if allGeneric {
			return false
		}
	}

	for _, pattern := range promptLeakage {
		if strings.Contains(trimmed, pattern) {
			return false
		}
	}

	return true
}
