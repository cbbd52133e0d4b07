// Package main implements the Policywise streaming chat server. Answers
// stream over SSE as token events, followed by a single sources event when
// the turn was grounded, then a done event.
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

	"github.com/policywise/policywise/engine/chat"
	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/engine/rag"
	"github.com/policywise/policywise/engine/semantic"
	"github.com/policywise/policywise/pkg/mid"
	"github.com/policywise/policywise/pkg/ollama"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "policywise")
	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	chatModel := envOr("CHAT_MODEL", "llama3.1:8b")
	port := envOr("PORT", "8090")

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	embedClient := ollama.NewEmbedClient(ollamaURL, embedModel, 10*time.Second)
	ragSvc := rag.New(embedClient, &searchAdapter{store: store}, rag.DefaultOptions(), logger)
	chatSvc := chat.New(ragSvc, &completerAdapter{client: ollama.NewChatClient(ollamaURL, chatModel)},
		chat.DefaultOptions(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", handleChatStream(chatSvc, logger))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Addr: ":" + port,
		Handler: mid.Chain(mux,
			mid.Recover(logger),
			mid.CORS("*"),
			mid.RateLimit(10, 20),
		),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("chat server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}

type chatRequest struct {
	Question      string                     `json:"question"`
	Conversation  domain.ConversationContext `json:"conversation"`
	InsuranceType string                     `json:"insurance_type,omitempty"`
	State         string                     `json:"state,omitempty"`
	Location      string                     `json:"location,omitempty"`
}

func handleChatStream(chatSvc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"question required"}`, http.StatusBadRequest)
			return
		}
		// Clients replaying a conversation may omit the question field.
		if strings.TrimSpace(req.Question) == "" {
			req.Question = req.Conversation.LastUserTurn()
		}
		if strings.TrimSpace(req.Question) == "" {
			http.Error(w, `{"error":"question required"}`, http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		for chunk := range chatSvc.Stream(r.Context(), rag.Request{
			Query:         req.Question,
			Conversation:  req.Conversation,
			InsuranceType: req.InsuranceType,
			State:         req.State,
			Location:      req.Location,
		}) {
			switch chunk.Kind {
			case chat.KindToken:
				data, _ := json.Marshal(map[string]string{"token": chunk.Token})
				fmt.Fprintf(w, "event: token\ndata: %s\n\n", data)
			case chat.KindSources:
				data, _ := json.Marshal(chunk.Sources)
				fmt.Fprintf(w, "event: sources\ndata: %s\n\n", data)
			case chat.KindError:
				logger.Error("chat stream failed", "err", chunk.Err)
				fmt.Fprintf(w, "event: error\ndata: {\"error\":\"completion failed\"}\n\n")
			}
			flusher.Flush()
		}

		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
	}
}

type searchAdapter struct {
	store *semantic.VectorStore
}

func (a *searchAdapter) Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]semantic.SearchResult, error) {
	return a.store.SearchFiltered(ctx, embedding, topK, filters)
}

type completerAdapter struct {
	client *ollama.ChatClient
}

func (c *completerAdapter) Stream(ctx context.Context, system, prompt string, onToken func(string) error) error {
	return c.client.Stream(ctx, []ollama.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}, 0.3, onToken)
}
