package rag

import (
	"strings"

	"github.com/policywise/policywise/engine/semantic"
)

// contextSeparator joins passages in the assembled context.
const contextSeparator = "\n\n"

// boundaryWindow is how far back from a hard cut we look for a sentence or
// word boundary before accepting a mid-text cut.
const boundaryWindow = 50

// assembleContext concatenates match texts in ranked order until the
// character budget is spent. A passage that would overflow the budget is
// truncated at a sentence boundary, then a word boundary, if one exists
// within boundaryWindow characters of the cut; assembly stops after the
// first truncated passage.
func assembleContext(ranked []semantic.SearchResult, budget int) string {
	var b strings.Builder

	for _, m := range ranked {
		text := m.Content
		if text == "" {
			continue
		}

		remaining := budget - b.Len()
		if b.Len() > 0 {
			remaining -= len(contextSeparator)
		}
		if remaining <= 0 {
			break
		}

		if len(text) > remaining {
			text = truncateAtBoundary(text, remaining)
			if text == "" {
				break
			}
			if b.Len() > 0 {
				b.WriteString(contextSeparator)
			}
			b.WriteString(text)
			break
		}

		if b.Len() > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(text)
	}

	return b.String()
}

// truncateAtBoundary cuts text to at most limit bytes, preferring a sentence
// end and then a word break within boundaryWindow bytes of the cut. Only
// when no clean boundary is that close does it cut mid-word.
func truncateAtBoundary(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	if limit <= 0 {
		return ""
	}

	floor := limit - boundaryWindow
	if floor < 0 {
		floor = 0
	}

	for i := limit - 1; i >= floor; i-- {
		switch text[i] {
		case '.', '!', '?':
			return strings.TrimRight(text[:i+1], " ")
		}
	}

	if i := strings.LastIndexByte(text[:limit], ' '); i >= floor && i > 0 {
		return strings.TrimRight(text[:i], " ")
	}

	return text[:limit]
}
