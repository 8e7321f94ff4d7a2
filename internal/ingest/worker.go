package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const defaultPollInterval = 2 * time.Second

// Worker polls the job queue and embeds submitted documents in the
// background.
type Worker struct {
	indexer      *Indexer
	pollInterval time.Duration
}

// NewWorker creates a Worker around the given Indexer.
func NewWorker(indexer *Indexer) *Worker {
	return &Worker{indexer: indexer, pollInterval: defaultPollInterval}
}

// Run processes jobs until the context is cancelled. It drains all runnable
// jobs each tick, so a burst of submissions doesn't wait one interval per
// document.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("ingest worker started", "poll_interval", w.pollInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and processes jobs until the queue has nothing runnable.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.indexer.store.ClaimNextJob([]string{JobTypeEmbedDoc})
		if err != nil {
			slog.Error("claiming job failed", "error", err)
			return
		}
		if job == nil {
			return
		}

		if err := w.process(ctx, job.ID, job.PayloadJSON); err != nil {
			slog.Warn("embed job failed", "job", job.ID, "error", err)
			if failErr := w.indexer.store.FailJob(job.ID, err.Error()); failErr != nil {
				slog.Error("recording job failure failed", "job", job.ID, "error", failErr)
			}
			continue
		}

		if err := w.indexer.store.CompleteJob(job.ID); err != nil {
			slog.Error("completing job failed", "job", job.ID, "error", err)
		}
	}
}

func (w *Worker) process(ctx context.Context, jobID, payloadJSON string) error {
	var payload embedDocPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return err
	}
	slog.Debug("embedding document", "job", jobID, "document", payload.DocumentID)
	return w.indexer.embedDocument(ctx, payload.DocumentID)
}
