// Package rag implements the retrieval pipeline that grounds chat answers.
// It embeds a user question, searches the vector index, filters and ranks
// the hits, and assembles a size-bounded context string with source
// attributions. Retrieval is an enhancement: every upstream failure
// degrades to an ungrounded response instead of failing the chat turn.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/engine/semantic"
	"github.com/policywise/policywise/pkg/insnlp"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector similarity search with metadata filters.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]semantic.SearchResult, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK            int
	MinScore        float32
	MaxContextChars int
	MaxSources      int
	SearchTimeout   time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		MinScore:        0.7,
		MaxContextChars: 4000,
		MaxSources:      3,
		SearchTimeout:   5 * time.Second,
	}
}

// TopK clamp bounds for a single search.
const (
	minTopK = 1
	maxTopK = 20
)

// Service is the retrieval pipeline. It is stateless per call; the embedder
// and searcher it borrows must be safe for concurrent use.
type Service struct {
	embed  Embedder
	search Searcher
	opts   Options
	logger *slog.Logger
}

// New creates a Service. Dependencies are injected once at startup; there is
// deliberately no lazily-created shared instance.
func New(embed Embedder, search Searcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultOptions().MinScore
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultOptions().MaxContextChars
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = DefaultOptions().MaxSources
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{embed: embed, search: search, opts: opts, logger: logger}
}

// Request is one retrieval invocation.
type Request struct {
	Query         string
	Conversation  domain.ConversationContext
	TopK          int    // 0 means service default
	InsuranceType string // explicit values win over conversation-derived ones
	State         string
	Location      string // free-text like "Austin, TX"; parsed when State is empty
}

// Source is a citation backing the assembled context.
type Source struct {
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Relevance float32 `json:"relevance"`
}

// Response is the pipeline output. Context is nil, never the empty string,
// when no match cleared the relevance floor; the caller then proceeds
// without grounding.
type Response struct {
	Context *string  `json:"context"`
	Sources []Source `json:"sources"`
}

// Query runs the pipeline: embed, search, filter, dedup, rank, assemble.
// It never returns an error to the caller; embedding or index failures are
// logged and collapse into an empty Response.
func (s *Service) Query(ctx context.Context, req Request) Response {
	empty := Response{Sources: []Source{}}

	if strings.TrimSpace(req.Query) == "" {
		return empty
	}

	filters := s.deriveFilters(req)
	topK := clampTopK(req.TopK, s.opts.TopK)

	embedding, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		s.logger.Warn("rag: embed failed, answering ungrounded", "err", err)
		return empty
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	matches, err := s.search.Search(searchCtx, embedding, topK, filters)
	if err != nil {
		s.logger.Warn("rag: search failed, answering ungrounded", "err", err)
		return empty
	}

	ranked := rank(dedupeByTitle(filterByScore(matches, s.opts.MinScore)))
	if len(ranked) == 0 {
		return empty
	}

	assembled := assembleContext(ranked, s.opts.MaxContextChars)
	s.logger.Info("rag: retrieval done",
		"matches", len(matches),
		"qualified", len(ranked),
		"context_chars", len(assembled),
	)

	return Response{
		Context: &assembled,
		Sources: sourcesFrom(ranked, s.opts.MaxSources),
	}
}

// deriveFilters builds index filters from the request and conversation.
// Explicit request values take precedence, then a parsed request location,
// then conversation-level structured fields; free-text inference over the
// turns is the last resort.
func (s *Service) deriveFilters(req Request) map[string]string {
	filters := make(map[string]string)

	lineRaw := req.InsuranceType
	if lineRaw == "" {
		lineRaw = req.Conversation.InsuranceType
	}
	if lineRaw == "" {
		if line, ok := insnlp.LineFromConversation(req.Conversation); ok {
			lineRaw = string(line)
		}
	}
	if lineRaw != "" {
		if line, err := domain.NormalizeLine(lineRaw); err == nil {
			filters["insurance_type"] = string(line)
		} else {
			s.logger.Debug("rag: dropping unknown insurance_type filter", "value", lineRaw)
		}
	}

	stateRaw := req.State
	if stateRaw == "" && req.Location != "" {
		if loc, ok := domain.ParseLocation(req.Location); ok {
			stateRaw = loc.State
		}
	}
	if stateRaw == "" {
		stateRaw = req.Conversation.State
	}
	if stateRaw == "" {
		if st, ok := insnlp.StateFromConversation(req.Conversation); ok {
			stateRaw = st
		}
	}
	if stateRaw != "" {
		if st, err := domain.NormalizeState(stateRaw); err == nil {
			filters["state"] = st
		} else {
			s.logger.Debug("rag: dropping unknown state filter", "value", stateRaw)
		}
	}

	return filters
}

func clampTopK(requested, fallback int) int {
	k := requested
	if k == 0 {
		k = fallback
	}
	if k < minTopK {
		k = minTopK
	}
	if k > maxTopK {
		k = maxTopK
	}
	return k
}
