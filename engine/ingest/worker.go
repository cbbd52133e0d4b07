package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/pkg/fn"
	"github.com/policywise/policywise/pkg/natsutil"
)

// DeadLetter wraps a document that exhausted its ingestion retries.
type DeadLetter struct {
	Document domain.Document `json:"document"`
	Error    string          `json:"error"`
}

// Worker consumes KB documents from NATS and runs them through the
// pipeline. Failed documents are retried with backoff, then published to
// the DLQ subject.
type Worker struct {
	nc     *nats.Conn
	deps   Deps
	logger *slog.Logger
	retry  fn.RetryOpts
}

// NewWorker creates an ingestion worker.
func NewWorker(nc *nats.Conn, deps Deps, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.MaxAttempts = MaxRetries
	return &Worker{nc: nc, deps: deps, logger: logger, retry: retry}
}

// Start subscribes to IngestSubject in the given queue group. The returned
// subscription should be drained on shutdown.
func (w *Worker) Start(queue string) (*nats.Subscription, error) {
	return natsutil.QueueSubscribe(w.nc, IngestSubject, queue, w.handle)
}

func (w *Worker) handle(ctx context.Context, doc domain.Document) {
	result := fn.Retry(ctx, w.retry, func(ctx context.Context) fn.Result[string] {
		if err := Process(ctx, w.deps, doc); err != nil {
			return fn.Err[string](err)
		}
		return fn.Ok(doc.ID)
	})
	if result.IsOk() {
		return
	}

	_, err := result.Unwrap()
	w.logger.Error("ingest: document failed, sending to DLQ", "doc_id", doc.ID, "err", err)
	dl := DeadLetter{Document: doc, Error: err.Error()}
	if pubErr := natsutil.Publish(ctx, w.nc, DLQSubject, dl); pubErr != nil {
		w.logger.Error("ingest: DLQ publish failed", "doc_id", doc.ID, "err", pubErr)
	}
}
