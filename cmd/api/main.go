// Package main implements the Policywise API server: a JSON chat endpoint
// grounded by the retrieval pipeline, plus a raw retrieval endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/policywise/policywise/engine/chat"
	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/engine/rag"
	"github.com/policywise/policywise/engine/semantic"
	"github.com/policywise/policywise/pkg/metrics"
	"github.com/policywise/policywise/pkg/mid"
	"github.com/policywise/policywise/pkg/ollama"
	"github.com/policywise/policywise/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	MetricsPort string
	OllamaURL   string
	EmbedModel  string
	ChatModel   string
	QdrantURL   string
	Collection  string
	CORSOrigin  string
	RAGConfig   string // optional YAML tuning file
}

func loadConfig() Config {
	_ = godotenv.Load()
	return Config{
		Port:        envOr("PORT", "8080"),
		MetricsPort: envOr("METRICS_PORT", "9090"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:   envOr("CHAT_MODEL", "llama3.1:8b"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "policywise"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		RAGConfig:   os.Getenv("RAG_CONFIG"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ragTuning is the optional YAML tuning file for pipeline options.
type ragTuning struct {
	TopK            int     `yaml:"top_k"`
	MinScore        float32 `yaml:"min_score"`
	MaxContextChars int     `yaml:"max_context_chars"`
	MaxSources      int     `yaml:"max_sources"`
	SearchTimeout   string  `yaml:"search_timeout"`
}

func loadRAGOptions(path string) (rag.Options, error) {
	opts := rag.DefaultOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read rag config: %w", err)
	}
	var t ragTuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return opts, fmt.Errorf("parse rag config: %w", err)
	}
	if t.TopK > 0 {
		opts.TopK = t.TopK
	}
	if t.MinScore > 0 {
		opts.MinScore = t.MinScore
	}
	if t.MaxContextChars > 0 {
		opts.MaxContextChars = t.MaxContextChars
	}
	if t.MaxSources > 0 {
		opts.MaxSources = t.MaxSources
	}
	if t.SearchTimeout != "" {
		d, err := time.ParseDuration(t.SearchTimeout)
		if err != nil {
			return opts, fmt.Errorf("parse search_timeout: %w", err)
		}
		opts.SearchTimeout = d
	}
	return opts, nil
}

var met = metrics.New()

var (
	mChatRequests  = met.Counter("policywise_api_chat_requests_total", "Chat requests served")
	mRetrievals    = met.Counter("policywise_api_retrievals_total", "Retrieval-only requests served")
	mUngrounded    = met.Counter("policywise_api_ungrounded_total", "Chat turns answered without grounding")
	mChatDuration  = met.Histogram("policywise_api_chat_duration_seconds", "Chat turn latency", nil)
	mQueryDuration = met.Histogram("policywise_api_retrieval_duration_seconds", "Retrieval latency", nil)
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ragOpts, err := loadRAGOptions(cfg.RAGConfig)
	if err != nil {
		return err
	}

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Embedding client, behind a circuit breaker ---
	embedClient := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel, 10*time.Second)

	// Fail fast on a collection whose vector size doesn't match the model.
	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dims, err := embedClient.Dimensions(startupCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("probe embedding dimensions: %w", err)
	}
	if err := vectorStore.EnsureCollection(startupCtx, dims); err != nil {
		cancel()
		return fmt.Errorf("ensure collection: %w", err)
	}
	cancel()
	logger.Info("vector index ready", "collection", cfg.Collection, "dims", dims)

	embedder := &breakerEmbedder{
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		inner:   embedClient,
	}

	// --- Build services ---
	ragSvc := rag.New(embedder, &semanticAdapter{store: vectorStore}, ragOpts, logger)
	chatSvc := chat.New(ragSvc, &completerAdapter{client: ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel)},
		chat.DefaultOptions(), logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/retrieve", handleRetrieve(ragSvc, logger))
	mux.HandleFunc("POST /api/chat", handleChat(chatSvc, ragOpts, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("policywise-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(20, 40),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	met.ServeAsync(atoiOr(cfg.MetricsPort, 9090))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	return srv.Shutdown(shutCtx)
}

func atoiOr(s string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RetrieveRequest is the JSON body for POST /api/retrieve.
type RetrieveRequest struct {
	Query         string                     `json:"query"`
	Conversation  domain.ConversationContext `json:"conversation"`
	TopK          int                        `json:"top_k,omitempty"`
	InsuranceType string                     `json:"insurance_type,omitempty"`
	State         string                     `json:"state,omitempty"`
	Location      string                     `json:"location,omitempty"`
}

func handleRetrieve(ragSvc *rag.Service, _ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RetrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		start := time.Now()
		resp := ragSvc.Query(r.Context(), rag.Request{
			Query:         req.Query,
			Conversation:  req.Conversation,
			TopK:          req.TopK,
			InsuranceType: req.InsuranceType,
			State:         req.State,
			Location:      req.Location,
		})
		mQueryDuration.Since(start)
		mRetrievals.Inc()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question      string                     `json:"question"`
	Conversation  domain.ConversationContext `json:"conversation"`
	InsuranceType string                     `json:"insurance_type,omitempty"`
	State         string                     `json:"state,omitempty"`
	Location      string                     `json:"location,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer    string       `json:"answer"`
	Sources   []rag.Source `json:"sources"`
	Citations string       `json:"citations,omitempty"`
}

func handleChat(chatSvc *chat.Service, ragOpts rag.Options, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		start := time.Now()
		mChatRequests.Inc()

		var answer strings.Builder
		var sources []rag.Source
		for chunk := range chatSvc.Stream(r.Context(), rag.Request{
			Query:         req.Question,
			Conversation:  req.Conversation,
			InsuranceType: req.InsuranceType,
			State:         req.State,
			Location:      req.Location,
		}) {
			switch chunk.Kind {
			case chat.KindToken:
				answer.WriteString(chunk.Token)
			case chat.KindSources:
				sources = chunk.Sources
			case chat.KindError:
				logger.Error("chat turn failed", "err", chunk.Err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}
		}
		mChatDuration.Since(start)
		if len(sources) == 0 {
			mUngrounded.Inc()
			sources = []rag.Source{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Answer:    answer.String(),
			Sources:   sources,
			Citations: chat.FormatCitations(sources, ragOpts.MinScore, ragOpts.MaxSources),
		})
	}
}

// --- Adapters ---

// semanticAdapter adapts VectorStore to the rag.Searcher interface.
type semanticAdapter struct {
	store *semantic.VectorStore
}

func (a *semanticAdapter) Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]semantic.SearchResult, error) {
	return a.store.SearchFiltered(ctx, embedding, topK, filters)
}

// breakerEmbedder wraps an embedder with a circuit breaker so a flapping
// upstream short-circuits into the ungrounded path instead of burning the
// timeout on every request.
type breakerEmbedder struct {
	breaker *resilience.Breaker
	inner   rag.Embedder
}

func (b *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vec, err = b.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

// completerAdapter adapts the Ollama chat client to chat.Completer.
type completerAdapter struct {
	client *ollama.ChatClient
}

func (c *completerAdapter) Stream(ctx context.Context, system, prompt string, onToken func(string) error) error {
	return c.client.Stream(ctx, []ollama.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}, 0.3, onToken)
}
