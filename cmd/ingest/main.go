// Command ingest loads knowledge-base documents into the vector index. It
// scans a directory for JSON document files and, when a NATS URL is given,
// also consumes documents from the engine.kb.ingest subject.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/engine/ingest"
	"github.com/policywise/policywise/engine/semantic"
	"github.com/policywise/policywise/pkg/metrics"
	"github.com/policywise/policywise/pkg/ollama"
)

var met = metrics.New()

var (
	mDocsTotal      = met.Counter("policywise_ingest_docs_total", "Documents ingested")
	mDocsFailed     = met.Counter("policywise_ingest_docs_failed_total", "Documents that failed ingestion")
	mFilesProcessed = met.Counter("policywise_ingest_files_processed_total", "Files processed")
	mLastScan       = met.Gauge("policywise_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mPipelineDur    = met.Histogram("policywise_ingest_pipeline_duration_seconds", "Per-doc pipeline time", nil)
)

func main() {
	var (
		dataDir     = flag.String("dir", "", "directory of KB document JSON files (optional)")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "policywise", "Qdrant collection name")
		natsURL     = flag.String("nats", "", "NATS URL for subject-based ingestion (optional)")
		interval    = flag.Duration("interval", 30*time.Second, "directory scan interval")
		metricsPort = flag.Int("metrics-port", 9091, "metrics port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	met.ServeAsync(*metricsPort)

	if err := run(*dataDir, *ollamaURL, *ollamaModel, *qdrantAddr, *collection, *natsURL, *interval, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(dataDir, ollamaURL, ollamaModel, qdrantAddr, collection, natsURL string, interval time.Duration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedClient := ollama.NewEmbedClient(ollamaURL, ollamaModel, 30*time.Second)

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dims, err := embedClient.Dimensions(startupCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("probe embedding dimensions: %w", err)
	}
	if err := store.EnsureCollection(startupCtx, dims); err != nil {
		cancel()
		return fmt.Errorf("ensure collection: %w", err)
	}
	cancel()

	deps := ingest.Deps{
		Embedder:    embedClient,
		VectorStore: store,
		Logger:      logger,
	}

	if natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name("policywise-ingest"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		worker := ingest.NewWorker(nc, deps, logger)
		sub, err := worker.Start("kb-ingest")
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Drain()
		logger.Info("ingest worker listening", "subject", ingest.IngestSubject)
	}

	if dataDir == "" {
		<-ctx.Done()
		return nil
	}

	processed := make(map[string]time.Time)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		if err := scanDir(ctx, dataDir, deps, processed, logger); err != nil {
			logger.Error("scan failed", "err", err)
		}
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

// scanDir ingests every new or modified .json file in dir. Each file holds
// either a single document or an array of documents.
func scanDir(ctx context.Context, dir string, deps ingest.Deps, processed map[string]time.Time, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if seen, ok := processed[path]; ok && !info.ModTime().After(seen) {
			continue
		}

		docs, err := loadDocuments(path)
		if err != nil {
			logger.Error("skipping unreadable file", "path", path, "err", err)
			processed[path] = info.ModTime()
			continue
		}

		for _, doc := range docs {
			start := time.Now()
			if err := ingest.Process(ctx, deps, doc); err != nil {
				mDocsFailed.Inc()
				logger.Error("document failed", "doc_id", doc.ID, "err", err)
				continue
			}
			mDocsTotal.Inc()
			mPipelineDur.Since(start)
		}

		processed[path] = info.ModTime()
		mFilesProcessed.Inc()
	}
	return nil
}

func loadDocuments(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []domain.Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return []domain.Document{doc}, nil
}
