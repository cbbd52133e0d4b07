package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/policywise/policywise/engine/chat"
	"github.com/policywise/policywise/engine/rag"
	"github.com/policywise/policywise/engine/semantic"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

type stubSearcher struct {
	results []semantic.SearchResult
}

func (s *stubSearcher) Search(context.Context, []float32, int, map[string]string) ([]semantic.SearchResult, error) {
	return s.results, nil
}

type stubCompleter struct {
	tokens []string
	prompt string
}

func (s *stubCompleter) Stream(_ context.Context, _, prompt string, onToken func(string) error) error {
	s.prompt = prompt
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func newTestHandler(searcher *stubSearcher, llm chat.Completer) http.HandlerFunc {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ragSvc := rag.New(stubEmbedder{}, searcher, rag.DefaultOptions(), log)
	chatSvc := chat.New(ragSvc, llm, chat.DefaultOptions(), log)
	return handleChatStream(chatSvc, log)
}

func TestHandleChatStream_EventOrder(t *testing.T) {
	searcher := &stubSearcher{
		results: []semantic.SearchResult{
			{ID: "1", Score: 0.9, Content: "Deductibles explained.", Title: "Deductibles", Type: "faq"},
		},
	}
	h := newTestHandler(searcher, &stubCompleter{tokens: []string{"You ", "pay first."}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chat",
		strings.NewReader(`{"question":"what is a deductible"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	tokenIdx := strings.Index(body, "event: token")
	sourcesIdx := strings.Index(body, "event: sources")
	doneIdx := strings.Index(body, "event: done")

	if tokenIdx == -1 || sourcesIdx == -1 || doneIdx == -1 {
		t.Fatalf("missing events in stream:\n%s", body)
	}
	if !(tokenIdx < sourcesIdx && sourcesIdx < doneIdx) {
		t.Errorf("events out of order:\n%s", body)
	}
	if strings.Count(body, "event: sources") != 1 {
		t.Error("sources must be emitted exactly once")
	}
}

func TestHandleChatStream_QuestionFromConversation(t *testing.T) {
	llm := &stubCompleter{tokens: []string{"ok"}}
	h := newTestHandler(&stubSearcher{}, llm)

	body := `{"conversation":{"turns":[
		{"role":"user","content":"what does umbrella insurance cover?"},
		{"role":"assistant","content":"Let me check."}
	]}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chat", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(llm.prompt, "umbrella insurance") {
		t.Errorf("latest user turn should become the question, prompt = %q", llm.prompt)
	}
}

func TestHandleChatStream_NoQuestionAnywhere(t *testing.T) {
	h := newTestHandler(&stubSearcher{}, &stubCompleter{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
