package ai

import (
	"fmt"
	"strings"
)

// MaxContentLength is the transcript size above which chunked summarization
// kicks in, in characters. Leaves room for the prompt template and response.
const MaxContentLength = 10000

// SummaryType selects which analysis prompt to build.
type SummaryType string

const (
	SummaryOverview     SummaryType = "overview"
	SummaryActionItems  SummaryType = "action_items"
	SummaryKeyDecisions SummaryType = "key_decisions"
	SummaryCustom       SummaryType = "custom"
)

// ParseSummaryType maps a stored string to a SummaryType, defaulting to
// overview.
func ParseSummaryType(s string) SummaryType {
	switch SummaryType(s) {
	case SummaryActionItems, SummaryKeyDecisions, SummaryCustom:
		return SummaryType(s)
	default:
		return SummaryOverview
	}
}

func notesSection(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return fmt.Sprintf("\nUSER NOTES:\n%s\n\n", notes)
}

func andUserNotes(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	return " and user notes"
}

// OverviewPrompt builds the single-pass summary prompt for a transcript.
func OverviewPrompt(transcript, notes string) string {
	return fmt.Sprintf(`Summarize this transcript in markdown. Only include what was actually said. If brief, keep summary brief.

%s%s

Summary:`, notesSection(notes), transcript)
}

// ActionItemsPrompt extracts action items from a transcript.
func ActionItemsPrompt(transcript, notes string) string {
	return fmt.Sprintf(`You are a professional note analyst. Extract all action items from the following transcript%s.
%sTRANSCRIPT:
%s

For each action item, identify:
- The specific task to be completed
- Responsible person (if mentioned)
- Deadline or timeline (if mentioned)

Rules:
- ONLY extract action items explicitly mentioned in the transcript
- Do NOT infer or fabricate action items that are not clearly stated
- Use markdown formatting with numbered lists
- Be specific and actionable
- Do NOT use emojis
- If no action items are found or the transcript is too brief, state "No action items identified."
- Use professional, clear language
- If user notes mention action items or tasks, include them

ACTION ITEMS:`, andUserNotes(notes), notesSection(notes), transcript)
}

// KeyDecisionsPrompt extracts decisions from a transcript.
func KeyDecisionsPrompt(transcript, notes string) string {
	return fmt.Sprintf(`You are a professional note analyst. Extract all key decisions from the following transcript%s.
%sTRANSCRIPT:
%s

For each decision, include:
- What was decided
- Context or reasoning (if provided)
- Who made or approved the decision (if mentioned)

Rules:
- ONLY extract decisions explicitly mentioned in the transcript
- Do NOT infer or fabricate decisions that are not clearly stated
- Use markdown formatting with numbered lists
- Be specific and clear
- Do NOT use emojis
- If no decisions were made or the transcript is too brief, state "No key decisions identified."
- Use professional, formal language
- If user notes mention decisions, include them

KEY DECISIONS:`, andUserNotes(notes), notesSection(notes), transcript)
}

// CustomPrompt analyzes a transcript against a user request.
func CustomPrompt(transcript, userPrompt, notes string) string {
	return fmt.Sprintf(`You are a professional note analyst. Analyze the following transcript%s based on the user's request.
%sTRANSCRIPT:
%s

USER REQUEST:
%s

Rules:
- Use markdown formatting where appropriate
- Be professional and concise
- Do NOT use emojis
- Directly address the user's request
- Use clear, formal language
- If user notes are provided, consider them as additional context

RESPONSE:`, andUserNotes(notes), notesSection(notes), transcript, userPrompt)
}

// NotesOnlyPrompt builds the summary prompt when a note has user notes but no
// transcript.
func NotesOnlyPrompt(summaryType SummaryType, notes, userPrompt string) string {
	switch summaryType {
	case SummaryActionItems:
		return fmt.Sprintf(`You are a professional note analyst. Extract all action items from the following user notes.

USER NOTES:
%s

For each action item, identify:
- The specific task to be completed
- Responsible person (if mentioned)
- Deadline or timeline (if mentioned)

Rules:
- Use markdown formatting with numbered lists
- Be specific and actionable
- Do NOT use emojis
- If no action items are found, state "No action items identified."
- Use professional, clear language

ACTION ITEMS:`, notes)
	case SummaryKeyDecisions:
		return fmt.Sprintf(`You are a professional note analyst. Extract all key decisions from the following user notes.

USER NOTES:
%s

For each decision, include:
- What was decided
- Context or reasoning (if provided)
- Who made or approved the decision (if mentioned)

Rules:
- Use markdown formatting with numbered lists
- Be specific and clear
- Do NOT use emojis
- If no decisions were made, state "No key decisions identified."
- Use professional, formal language

KEY DECISIONS:`, notes)
	case SummaryCustom:
		return fmt.Sprintf(`You are a professional note analyst. Analyze the following user notes based on the user's request.

USER NOTES:
%s

USER REQUEST:
%s

Rules:
- Use markdown formatting where appropriate
- Be professional and concise
- Do NOT use emojis
- Directly address the user's request
- Use clear, formal language

RESPONSE:`, notes, userPrompt)
	default:
		return fmt.Sprintf(`You are a professional note summarizer. Analyze the following user notes and provide a clear, concise summary in markdown format.

USER NOTES:
%s

Provide a professional summary that includes:
- Main topics covered
- Key points and conclusions
- Overall outcome or insights

Rules:
- Use markdown formatting (headings, bullet points, bold for emphasis)
- Be concise and professional
- Do NOT use emojis
- Focus on factual information
- Use clear, formal language

SUMMARY:`, notes)
	}
}

// ChunkPrompt summarizes one section of a long transcript.
func ChunkPrompt(summaryType SummaryType, chunk, userPrompt string, chunkNum, totalChunks int) string {
	switch summaryType {
	case SummaryActionItems:
		return fmt.Sprintf(`You are extracting action items from part %d of %d of a longer transcript.

TRANSCRIPT CHUNK:
%s

Extract any action items from this section:
- The specific task to be completed
- Responsible person (if mentioned)
- Deadline or timeline (if mentioned)

Rules:
- Use numbered lists
- Be specific and actionable
- Do NOT use emojis
- If no action items in this chunk, respond with "No action items in this section."

ACTION ITEMS:`, chunkNum, totalChunks, chunk)
	case SummaryKeyDecisions:
		return fmt.Sprintf(`You are extracting key decisions from part %d of %d of a longer transcript.

TRANSCRIPT CHUNK:
%s

Extract any decisions from this section:
- What was decided
- Context or reasoning (if provided)
- Who made or approved the decision (if mentioned)

Rules:
- Use numbered lists
- Be specific and clear
- Do NOT use emojis
- If no decisions in this chunk, respond with "No decisions in this section."

KEY DECISIONS:`, chunkNum, totalChunks, chunk)
	case SummaryCustom:
		return fmt.Sprintf(`You are analyzing part %d of %d from a longer transcript for the user's request.

USER REQUEST:
%s

TRANSCRIPT CHUNK:
%s

Provide relevant information from this section that addresses the user's request.

Rules:
- Be concise but capture all relevant information
- Do NOT use emojis
- This will be combined with results from other sections later

RESPONSE:`, chunkNum, totalChunks, userPrompt, chunk)
	default:
		return fmt.Sprintf(`You are summarizing part %d of %d from a longer transcript.

TRANSCRIPT CHUNK:
%s

Provide a concise summary of this section including:
- Main topics discussed in this part
- Key points and any conclusions
- Important details mentioned

Rules:
- Be concise but capture all important information
- Use bullet points for clarity
- Do NOT use emojis
- This will be combined with other chunk summaries later

CHUNK SUMMARY:`, chunkNum, totalChunks, chunk)
	}
}

func joinChunkResults(chunkSummaries []string) string {
	parts := make([]string, len(chunkSummaries))
	for i, s := range chunkSummaries {
		parts[i] = fmt.Sprintf("--- Part %d ---\n%s", i+1, s)
	}
	return strings.Join(parts, "\n\n")
}

// MergePrompt combines per-chunk results into the final answer.
func MergePrompt(summaryType SummaryType, chunkSummaries []string, userPrompt, notes string) string {
	summaries := joinChunkResults(chunkSummaries)
	switch summaryType {
	case SummaryActionItems:
		return fmt.Sprintf(`You are consolidating action items from multiple sections of a long transcript%s.
%sSECTION ACTION ITEMS:
%s

Combine these into a single, deduplicated list of action items:
- The specific task to be completed
- Responsible person (if mentioned)
- Deadline or timeline (if mentioned)

Rules:
- Use markdown formatting with numbered lists
- Remove duplicate or redundant items
- Be specific and actionable
- Do NOT use emojis
- If no action items found, state "No action items identified."
- If user notes mention action items, include them

ACTION ITEMS:`, andUserNotes(notes), notesSection(notes), summaries)
	case SummaryKeyDecisions:
		return fmt.Sprintf(`You are consolidating key decisions from multiple sections of a long transcript%s.
%sSECTION DECISIONS:
%s

Combine these into a single, deduplicated list of decisions:
- What was decided
- Context or reasoning (if provided)
- Who made or approved the decision (if mentioned)

Rules:
- Use markdown formatting with numbered lists
- Remove duplicate or redundant decisions
- Be specific and clear
- Do NOT use emojis
- If no decisions found, state "No key decisions identified."
- If user notes mention decisions, include them

KEY DECISIONS:`, andUserNotes(notes), notesSection(notes), summaries)
	case SummaryCustom:
		return fmt.Sprintf(`You are consolidating results from multiple sections of a long transcript%s for the user's request.
%sUSER REQUEST:
%s

SECTION RESULTS:
%s

Combine these into a single, coherent response that addresses the user's request.

Rules:
- Use markdown formatting where appropriate
- Be professional and concise
- Do NOT use emojis
- Eliminate redundancy
- If user notes are provided, consider them as additional context

FINAL RESPONSE:`, andUserNotes(notes), notesSection(notes), userPrompt, summaries)
	default:
		return fmt.Sprintf(`You are creating a final summary from multiple section summaries of a long transcript%s.
%sSECTION SUMMARIES:
%s

Combine these into a single, coherent summary that includes:
- Main topics discussed
- Key points and conclusions
- Overall outcome

Rules:
- Use markdown formatting (headings, bullet points, bold for emphasis)
- Be concise and professional
- Do NOT use emojis
- Eliminate redundancy between sections
- Present information in a logical flow
- If user notes are provided, incorporate relevant context

FINAL SUMMARY:`, andUserNotes(notes), notesSection(notes), summaries)
	}
}

// TitleFromSummaryPrompt asks for a short title based on a finished summary.
func TitleFromSummaryPrompt(summary string) string {
	return fmt.Sprintf(`Write a 2-6 word title for this summary. Use specific nouns, not generic words. Output only the title.

%s

Title:`, summary)
}

// TitlePrompt asks for a short title based on the raw transcript.
func TitlePrompt(transcript string) string {
	return fmt.Sprintf(`Write a 2-6 word title for this transcript. Use specific nouns, not generic words. Output only the title.

%s

Title:`, transcript)
}

// SplitChunks breaks text into pieces of at most maxSize characters,
// preferring sentence boundaries and falling back to word boundaries for
// oversized sentences.
func SplitChunks(text string, maxSize int) []string {
	if len(text) <= maxSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len()+len(sentence) > maxSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	// A single sentence can still exceed maxSize; force split on words.
	var final []string
	for _, chunk := range chunks {
		if len(chunk) <= maxSize {
			final = append(final, chunk)
			continue
		}
		var sub strings.Builder
		for _, word := range strings.Fields(chunk) {
			if sub.Len()+len(word)+1 > maxSize && sub.Len() > 0 {
				final = append(final, strings.TrimSpace(sub.String()))
				sub.Reset()
			}
			if sub.Len() > 0 {
				sub.WriteByte(' ')
			}
			sub.WriteString(word)
		}
		if strings.TrimSpace(sub.String()) != "" {
			final = append(final, strings.TrimSpace(sub.String()))
		}
	}
	return final
}

// splitSentences splits after sentence-ending punctuation followed by a space,
// keeping the terminator with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			sentences = append(sentences, text[start:i+2])
			start = i + 2
			i++
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
