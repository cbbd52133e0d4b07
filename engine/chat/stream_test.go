package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/policywise/policywise/engine/rag"
	"github.com/policywise/policywise/engine/semantic"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type stubSearcher struct {
	results []semantic.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, []float32, int, map[string]string) ([]semantic.SearchResult, error) {
	return s.results, s.err
}

type stubCompleter struct {
	tokens     []string
	err        error
	lastSystem string
	lastPrompt string
}

func (s *stubCompleter) Stream(_ context.Context, system, prompt string, onToken func(string) error) error {
	s.lastSystem = system
	s.lastPrompt = prompt
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return s.err
}

func newChat(searcher *stubSearcher, llm Completer) *Service {
	ragSvc := rag.New(&stubEmbedder{vec: []float32{0.1}}, searcher, rag.DefaultOptions(), slog.Default())
	return New(ragSvc, llm, DefaultOptions(), slog.Default())
}

func collect(ch <-chan Chunk) []Chunk {
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestStream_TokensThenSingleSourcesChunk(t *testing.T) {
	searcher := &stubSearcher{
		results: []semantic.SearchResult{
			{ID: "1", Score: 0.9, Content: "A deductible is what you pay first.", Title: "Deductibles", Type: "glossary"},
		},
	}
	llm := &stubCompleter{tokens: []string{"A ", "deductible ", "is..."}}
	svc := newChat(searcher, llm)

	chunks := collect(svc.Stream(context.Background(), rag.Request{Query: "what is a deductible"}))

	var sourcesAt []int
	for i, c := range chunks {
		if c.Kind == KindSources {
			sourcesAt = append(sourcesAt, i)
		}
		if c.Kind == KindError {
			t.Fatalf("unexpected error chunk: %v", c.Err)
		}
	}
	if len(sourcesAt) != 1 {
		t.Fatalf("expected exactly one sources chunk, got %d", len(sourcesAt))
	}
	if sourcesAt[0] != len(chunks)-1 {
		t.Error("sources chunk must be last")
	}
	if got := chunks[0].Token + chunks[1].Token + chunks[2].Token; got != "A deductible is..." {
		t.Errorf("token chunks out of order: %q", got)
	}
	if chunks[sourcesAt[0]].Sources[0].Title != "Deductibles" {
		t.Errorf("wrong source: %+v", chunks[sourcesAt[0]].Sources)
	}
}

func TestStream_GroundedPromptIncludesContext(t *testing.T) {
	searcher := &stubSearcher{
		results: []semantic.SearchResult{
			{ID: "1", Score: 0.9, Content: "Premiums are the recurring cost.", Title: "Premiums", Type: "glossary"},
		},
	}
	llm := &stubCompleter{tokens: []string{"ok"}}
	svc := newChat(searcher, llm)

	collect(svc.Stream(context.Background(), rag.Request{Query: "what is a premium"}))

	if !strings.Contains(llm.lastPrompt, "Premiums are the recurring cost.") {
		t.Error("retrieved context missing from prompt")
	}
	if !strings.Contains(llm.lastPrompt, "what is a premium") {
		t.Error("shopper question missing from prompt")
	}
	if !strings.Contains(llm.lastSystem, "Ground your answer") {
		t.Error("grounding instructions missing from system prompt")
	}
}

func TestStream_UngroundedWhenRetrievalEmpty(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index down")}
	llm := &stubCompleter{tokens: []string{"Happy", " to", " help"}}
	svc := newChat(searcher, llm)

	chunks := collect(svc.Stream(context.Background(), rag.Request{Query: "hello"}))

	for _, c := range chunks {
		if c.Kind == KindSources {
			t.Fatal("no sources chunk expected on an ungrounded turn")
		}
		if c.Kind == KindError {
			t.Fatalf("retrieval failure must not fail the turn: %v", c.Err)
		}
	}
	if len(chunks) != 3 {
		t.Errorf("expected 3 token chunks, got %d", len(chunks))
	}
	if llm.lastPrompt != "hello" {
		t.Errorf("ungrounded prompt should be the bare question, got %q", llm.lastPrompt)
	}
	if strings.Contains(llm.lastSystem, "Ground your answer") {
		t.Error("grounding instructions should be absent without context")
	}
}

func TestStream_CompletionFailureEmitsTerminalError(t *testing.T) {
	searcher := &stubSearcher{
		results: []semantic.SearchResult{
			{ID: "1", Score: 0.9, Content: "text", Title: "T", Type: "faq"},
		},
	}
	llm := &stubCompleter{tokens: []string{"partial"}, err: errors.New("model crashed")}
	svc := newChat(searcher, llm)

	chunks := collect(svc.Stream(context.Background(), rag.Request{Query: "q"}))

	last := chunks[len(chunks)-1]
	if last.Kind != KindError {
		t.Fatalf("expected terminal error chunk, got kind %d", last.Kind)
	}
	for _, c := range chunks {
		if c.Kind == KindSources {
			t.Error("sources must not be emitted after a failed completion")
		}
	}
}

func TestStream_ContextCancelStopsTokens(t *testing.T) {
	searcher := &stubSearcher{}
	llm := &stubCompleter{tokens: []string{"a", "b", "c"}}
	svc := newChat(searcher, llm)

	ctx, cancel := context.WithCancel(context.Background())
	ch := svc.Stream(ctx, rag.Request{Query: "q"})

	<-ch // take one chunk, then walk away
	cancel()
	for range ch {
	}
	// Reaching here without deadlock is the assertion.
}

func TestFormatCitations(t *testing.T) {
	sources := []rag.Source{
		{Title: "Deductibles", Type: "glossary", Relevance: 0.9},
		{Title: "Premiums", Type: "faq", Relevance: 0.8},
	}
	got := FormatCitations(sources, 0.7, 3)
	want := "Sources:\n1. Deductibles (glossary)\n2. Premiums (faq)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Formatting twice yields the same block.
	if again := FormatCitations(sources, 0.7, 3); again != got {
		t.Errorf("not idempotent: %q vs %q", again, got)
	}
}

func TestFormatCitations_EmptyAfterFloor(t *testing.T) {
	sources := []rag.Source{{Title: "Weak", Type: "faq", Relevance: 0.2}}
	if got := FormatCitations(sources, 0.7, 3); got != "" {
		t.Errorf("expected empty block, got %q", got)
	}
}
