package rag

import (
	"strings"
	"testing"

	"github.com/policywise/policywise/engine/semantic"
)

func TestAssembleContext_JoinsWithSeparator(t *testing.T) {
	ranked := []semantic.SearchResult{
		{Content: "First passage."},
		{Content: "Second passage."},
	}
	got := assembleContext(ranked, 4000)
	want := "First passage.\n\nSecond passage."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssembleContext_RespectsBudget(t *testing.T) {
	ranked := []semantic.SearchResult{
		{Content: strings.Repeat("a", 3000) + ". End"},
		{Content: strings.Repeat("b", 3000)},
	}
	got := assembleContext(ranked, 4000)
	if len(got) > 4000 {
		t.Fatalf("context of %d chars exceeds budget", len(got))
	}
	if !strings.Contains(got, "b") {
		t.Error("second passage should be partially included")
	}
}

func TestAssembleContext_StopsAfterTruncation(t *testing.T) {
	ranked := []semantic.SearchResult{
		{Content: strings.Repeat("x", 90) + " tail words here"},
		{Content: "never reached"},
	}
	got := assembleContext(ranked, 100)
	if strings.Contains(got, "never reached") {
		t.Error("assembly must stop after the first truncated passage")
	}
	if len(got) > 100 {
		t.Errorf("budget exceeded: %d", len(got))
	}
}

func TestAssembleContext_SkipsEmptyContent(t *testing.T) {
	ranked := []semantic.SearchResult{
		{Content: ""},
		{Content: "only passage"},
	}
	got := assembleContext(ranked, 100)
	if got != "only passage" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateAtBoundary_PrefersSentenceEnd(t *testing.T) {
	text := "One sentence here. Another one follows and keeps going well past the cut point"
	got := truncateAtBoundary(text, 40)
	if got != "One sentence here." {
		t.Errorf("got %q", got)
	}
}

func TestTruncateAtBoundary_FallsBackToWordBreak(t *testing.T) {
	text := "no sentence punctuation just a long run of words that keeps on going"
	got := truncateAtBoundary(text, 30)
	if strings.HasSuffix(got, " ") {
		t.Errorf("trailing space left behind: %q", got)
	}
	if len(got) > 30 {
		t.Fatalf("over limit: %d", len(got))
	}
	// Must end on a whole word.
	if !strings.HasSuffix(text, got) && !strings.Contains(text, got+" ") {
		t.Errorf("cut mid-word: %q", got)
	}
}

func TestTruncateAtBoundary_HardCutWhenNoBoundaryNear(t *testing.T) {
	text := strings.Repeat("z", 200)
	got := truncateAtBoundary(text, 80)
	if len(got) != 80 {
		t.Errorf("expected hard cut at 80, got %d", len(got))
	}
}

func TestTruncateAtBoundary_ShortTextUnchanged(t *testing.T) {
	if got := truncateAtBoundary("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateAtBoundary("anything", 0); got != "" {
		t.Errorf("zero limit should return empty, got %q", got)
	}
}
