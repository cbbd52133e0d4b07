package ingest

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	text := "First sentence. Second one! Third?\nFourth on its own line"
	got := splitSentences(text)
	want := []string{"First sentence.", "Second one!", "Third?", "Fourth on its own line"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences: %v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentences_AbbreviationNotSplitMidWord(t *testing.T) {
	// A period followed by a non-space must not end a sentence.
	got := splitSentences("visit example.com for details. done")
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "visit example.com for details." {
		t.Errorf("got %q", got[0])
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	if got := splitSentences(""); len(got) != 0 {
		t.Errorf("got %v", got)
	}
	if got := splitSentences("   \n  "); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestChunkSentences_SingleChunkWhenSmall(t *testing.T) {
	sentences := []string{"One two three.", "Four five."}
	chunks := chunkSentences("doc", sentences, 512, 50)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Text != "One two three. Four five." {
		t.Errorf("got %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 || chunks[0].DocID != "doc" {
		t.Errorf("bad chunk metadata: %+v", chunks[0])
	}
}

func TestChunkSentences_SplitsWithOverlap(t *testing.T) {
	// 20 sentences of 10 words each; chunk size 50 forces multiple chunks.
	var sentences []string
	for i := 0; i < 20; i++ {
		sentences = append(sentences, strings.Repeat("word ", 9)+"end.")
	}
	chunks := chunkSentences("doc", sentences, 50, 10)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if wordCount(c.Text) > 50 {
			t.Errorf("chunk %d has %d tokens", i, wordCount(c.Text))
		}
	}
	// Overlap: consecutive chunks share their boundary sentence.
	first := strings.Split(chunks[0].Text, ". ")
	second := strings.Split(chunks[1].Text, ". ")
	if first[len(first)-1] != second[0]+". " && !strings.Contains(chunks[1].Text, first[len(first)-2]) {
		t.Error("expected sentence overlap between consecutive chunks")
	}
}

func TestChunkSentences_EmptyInput(t *testing.T) {
	if chunks := chunkSentences("doc", nil, 512, 50); chunks != nil {
		t.Errorf("got %v", chunks)
	}
}

func TestChunkSentences_OversizedSentenceStillChunks(t *testing.T) {
	// A single sentence larger than the chunk size must still produce one chunk.
	big := strings.Repeat("word ", 600)
	chunks := chunkSentences("doc", []string{strings.TrimSpace(big)}, 512, 50)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
}
