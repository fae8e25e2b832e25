package indexing

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/opentestimony/internal/logging"
	"github.com/tomtom215/opentestimony/internal/metrics"
	"github.com/tomtom215/opentestimony/internal/queue"
)

// Worker is the single persistent background task that owns the
// indexing pipeline (spec.md §4.4, §5 "one persistent worker task").
// It polls the queue on an interval, claims the oldest pending/
// pending_visual/pending_fix job, and runs it; a best-effort wakeup
// channel lets it skip waiting out the full interval after an upload.
type Worker struct {
	queue        *queue.Store
	pipeline     *Pipeline
	pollInterval time.Duration
	wake         <-chan string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewWorker builds a Worker. wake may be nil; pollInterval falls back
// to 10s (spec.md §6 "worker poll interval... default 10s") if zero.
func NewWorker(q *queue.Store, pipeline *Pipeline, pollInterval time.Duration, wake <-chan string) *Worker {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Worker{queue: q, pipeline: pipeline, pollInterval: pollInterval, wake: wake}
}

// Serve implements suture.Service so the worker runs under the
// supervision tree alongside the rest of the bridge's background work.
func (w *Worker) Serve(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)

	<-ctx.Done()
	w.Stop()
	return ctx.Err()
}

// Stop ends the poll loop and waits for any in-flight job to notice
// context cancellation. An in-flight job that doesn't finish in time
// stays `processing` and is picked up again only via manual admin reset
// (spec.md §5 Cancellation: "processing is a terminal state from the
// worker's perspective unless manually reset").
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	w.drain(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wakeChan():
			w.drain(ctx)
		}
	}
}

func (w *Worker) wakeChan() <-chan string {
	if w.wake == nil {
		return nil
	}
	return w.wake
}

// drain processes every pending job currently in the queue before
// returning to the poll wait, so a burst of uploads doesn't each wait a
// full interval behind the last.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		job, err := w.queue.SelectNextJob(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("indexing worker: select next job failed")
			return
		}
		if job == nil {
			return
		}

		w.runOne(ctx, job)
	}
}

func (w *Worker) runOne(ctx context.Context, job *queue.Job) {
	logging.Info().Str("media_id", job.MediaID).Str("status", string(job.Status)).Msg("indexing worker: starting job")
	start := time.Now()
	preRunStatus := string(job.Status)

	counts, err := w.pipeline.Run(ctx, job, w.queue)
	if err != nil {
		metrics.RecordIndexingJob(preRunStatus, "failed", time.Since(start))
		logging.Error().Err(err).Str("media_id", job.MediaID).Msg("indexing worker: job failed")
		if failErr := w.queue.Fail(ctx, job.MediaID, err); failErr != nil {
			logging.Error().Err(failErr).Str("media_id", job.MediaID).Msg("indexing worker: failed to record failure")
		}
		return
	}

	if err := w.queue.Complete(ctx, job.MediaID, counts); err != nil {
		logging.Error().Err(err).Str("media_id", job.MediaID).Msg("indexing worker: failed to record completion")
		return
	}
	metrics.RecordIndexingJob(preRunStatus, "completed", time.Since(start))
	metrics.RecordModalityCount("frame", counts.FrameCount)
	metrics.RecordModalityCount("transcript", counts.TranscriptCount)
	metrics.RecordModalityCount("caption", counts.CaptionCount)
	metrics.RecordModalityCount("clip", counts.ClipCount)
	metrics.RecordModalityCount("action", counts.ActionCount)
	logging.Info().Str("media_id", job.MediaID).Msg("indexing worker: job completed")
}
