// Package chat turns retrieval output into a grounded, streamed answer.
// A chat turn is a forward-only sequence of chunks: zero or more model
// token chunks, then at most one sources chunk, always last and emitted
// exactly once. Retrieval failures never block the completion call.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/policywise/policywise/engine/rag"
)

// Completer abstracts the streaming LLM call.
type Completer interface {
	Stream(ctx context.Context, system, prompt string, onToken func(string) error) error
}

// ChunkKind discriminates stream chunks.
type ChunkKind int

const (
	KindToken   ChunkKind = iota // one content fragment from the model
	KindSources                  // the final citation block
	KindError                    // terminal failure of the completion call
)

// Chunk is one element of a chat stream.
type Chunk struct {
	Kind    ChunkKind
	Token   string
	Sources []rag.Source
	Err     error
}

// Options configures chat behaviour.
type Options struct {
	SystemPrompt string
	Temperature  float32
	MinScore     float32
	MaxSources   int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		SystemPrompt: defaultSystemPrompt,
		Temperature:  0.3,
		MinScore:     0.7,
		MaxSources:   3,
	}
}

const defaultSystemPrompt = `You are Policywise, a knowledgeable insurance-shopping assistant.
Be accurate and plain-spoken. Explain coverage terms without jargon and
never invent policy details.`

const groundingInstructions = `Ground your answer in the knowledge-base excerpts below.
If the excerpts do not cover the question, say so rather than guessing.`

// Service orchestrates one chat turn: retrieve, complete, cite.
type Service struct {
	retrieval *rag.Service
	llm       Completer
	opts      Options
	logger    *slog.Logger
}

// New creates a chat Service with injected dependencies.
func New(retrieval *rag.Service, llm Completer, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultOptions().MinScore
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = DefaultOptions().MaxSources
	}
	return &Service{retrieval: retrieval, llm: llm, opts: opts, logger: logger}
}

// Stream runs a chat turn and returns the chunk channel. The channel is
// closed when the turn is finished or ctx is cancelled. Model content
// always precedes the sources chunk, and the sources chunk appears at most
// once, at the end of a successful turn.
func (s *Service) Stream(ctx context.Context, req rag.Request) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		retrieved := s.retrieval.Query(ctx, req)

		system := s.opts.SystemPrompt
		prompt := req.Query
		if retrieved.Context != nil {
			system = s.opts.SystemPrompt + "\n\n" + groundingInstructions
			prompt = fmt.Sprintf("Knowledge-base excerpts:\n%s\n\nShopper question: %s",
				*retrieved.Context, req.Query)
		}

		err := s.llm.Stream(ctx, system, prompt, func(token string) error {
			select {
			case out <- Chunk{Kind: KindToken, Token: token}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			s.logger.Error("chat: completion failed", "err", err)
			select {
			case out <- Chunk{Kind: KindError, Err: err}:
			case <-ctx.Done():
			}
			return
		}

		sources := rag.NormalizeSources(retrieved.Sources, s.opts.MinScore, s.opts.MaxSources)
		if len(sources) == 0 {
			return
		}
		select {
		case out <- Chunk{Kind: KindSources, Sources: sources}:
		case <-ctx.Done():
		}
	}()

	return out
}

// FormatCitations renders sources as a numbered citation block. It applies
// the same floor/sort/cap rule as the pipeline, so formatting an
// already-formatted list is a no-op on ordering and membership.
func FormatCitations(sources []rag.Source, floor float32, max int) string {
	normalized := rag.NormalizeSources(sources, floor, max)
	if len(normalized) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, src := range normalized {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, src.Title, src.Type)
	}
	return b.String()
}
