// Package transcript folds raw transcription fragments into the
// speaker-grouped buffer a session accumulates while recording.
package transcript

import "strings"

// Source identifies which audio track produced a fragment.
type Source string

const (
	SourceMic    Source = "mic"
	SourceSystem Source = "system"
)

// ParseSource maps a wire audio source to a Source. Anything unrecognized
// is treated as microphone input.
func ParseSource(s string) Source {
	if s == string(SourceSystem) {
		return SourceSystem
	}
	return SourceMic
}

// Fragment is one raw, possibly-partial piece of speech-to-text output.
type Fragment struct {
	StartTime float64
	EndTime   float64
	Text      string
	Source    Source
}

// Group is a maximal run of same-speaker transcript text. A buffer is an
// ordered slice of groups in which no two adjacent entries share a speaker.
type Group struct {
	Speaker   string
	StartTime float64
	EndTime   float64
	Text      string
}

// SpeakerFunc maps an audio source to the speaker label recorded for it.
type SpeakerFunc func(Source) string

// Merge applies a batch of fragments to the buffer and returns the new
// buffer. The input buffer is not mutated. Adjacent same-speaker entries are
// always folded, so the result is identical whether fragments arrive one at
// a time or batched.
func Merge(buffer []Group, fragments []Fragment, speakerFor SpeakerFunc) []Group {
	if len(fragments) == 0 {
		return buffer
	}

	candidates := collapse(fragments, speakerFor)

	out := make([]Group, len(buffer), len(buffer)+len(candidates))
	copy(out, buffer)

	if len(out) > 0 && out[len(out)-1].Speaker == candidates[0].Speaker {
		out[len(out)-1] = extend(out[len(out)-1], candidates[0])
		candidates = candidates[1:]
	}
	return append(out, candidates...)
}

// collapse converts fragments to candidate groups, folding consecutive
// same-speaker fragments within the batch.
func collapse(fragments []Fragment, speakerFor SpeakerFunc) []Group {
	var candidates []Group
	for _, f := range fragments {
		g := Group{
			Speaker:   speakerFor(f.Source),
			StartTime: f.StartTime,
			EndTime:   f.EndTime,
			Text:      strings.TrimSpace(f.Text),
		}
		if n := len(candidates); n > 0 && candidates[n-1].Speaker == g.Speaker {
			candidates[n-1] = extend(candidates[n-1], g)
			continue
		}
		candidates = append(candidates, g)
	}
	return candidates
}

func extend(into, next Group) Group {
	into.EndTime = next.EndTime
	switch {
	case into.Text == "":
		into.Text = next.Text
	case next.Text != "":
		into.Text = into.Text + " " + next.Text
	}
	return into
}

// Text joins a buffer into one transcript string.
func Text(buffer []Group) string {
	parts := make([]string, 0, len(buffer))
	for _, g := range buffer {
		if g.Text != "" {
			parts = append(parts, g.Text)
		}
	}
	return strings.Join(parts, " ")
}

// artifacts are tokens speech engines emit for non-speech audio; fragments
// consisting of these never enter the buffer.
var artifacts = []string{
	"[blank_audio]",
	"[inaudible]",
	"[ inaudible ]",
	"[silence]",
	"[music]",
	"[applause]",
	"[laughter]",
}

// IsArtifact reports whether fragment text is silence/noise markup rather
// than speech.
func IsArtifact(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, a := range artifacts {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
