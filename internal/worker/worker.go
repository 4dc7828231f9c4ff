package worker

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/models"
	"storyreel/internal/queue"
	"storyreel/internal/render"
)

// RecoveryNote annotates jobs reset from processing to pending at startup.
const RecoveryNote = "recovered after restart"

// maxErrorLen bounds the persisted job error message.
const maxErrorLen = 500

// pollInterval is the scheduler's fallback re-scan period. Nudges wake it
// sooner; the tick covers lost wake tokens and jobs enqueued by other
// instances without Redis.
const pollInterval = 15 * time.Second

// JobStore is the durable job record the scheduler drives. It is the
// single source of truth — there is no process-local job state to drift
// from it or be lost on restart.
type JobStore interface {
	ClaimOldestPending(ctx context.Context) (*models.VideoJob, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	CompleteJob(ctx context.Context, id uuid.UUID, videoURL string, fileSize int64) error
	FailJob(ctx context.Context, id uuid.UUID, errorMessage string) error
	RecoverProcessingJobs(ctx context.Context, note string) (int, error)
}

// Renderer runs the full pipeline for one job.
type Renderer interface {
	Render(ctx context.Context, jobID, projectID uuid.UUID, settings models.RenderSettings, progress func(int)) (*render.Result, error)
}

// Worker is the single-flight scheduler: at most one job is being
// processed per process instance at a time, trading throughput for
// resource predictability — clip synthesis saturates the encoder anyway.
type Worker struct {
	store    JobStore
	nudger   *queue.Nudger
	renderer Renderer
	busy     atomic.Bool
}

func New(store JobStore, nudger *queue.Nudger, renderer Renderer) *Worker {
	return &Worker{
		store:    store,
		nudger:   nudger,
		renderer: renderer,
	}
}

// Recover resets jobs stuck in processing back to pending. Called once
// before the scheduler loop starts: a processing row at startup is
// evidence of a crash mid-render, and must not stay stuck or be silently
// lost. The re-render starts from scratch — there is no partial-render
// checkpointing.
func (w *Worker) Recover(ctx context.Context) error {
	n, err := w.store.RecoverProcessingJobs(ctx, RecoveryNote)
	if err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	if n > 0 {
		log.Printf("[Worker] Recovered %d interrupted job(s) back to pending", n)
	}
	return nil
}

// Run is the scheduler loop. It drains all pending work, then sleeps until
// a nudge or the poll tick. Runs until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("[Worker] Scheduler started (poll interval %s)", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.Drain(ctx)

		select {
		case <-ctx.Done():
			log.Println("[Worker] Scheduler shutting down")
			return
		case <-w.nudger.C():
		case <-ticker.C:
		}
	}
}

// Drain processes pending jobs oldest-first until none remain. Guarded by
// a single-flight flag: a call while a drain is already running is a
// no-op, so concurrent nudges cannot start a second pipeline.
func (w *Worker) Drain(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	for ctx.Err() == nil {
		job, err := w.store.ClaimOldestPending(ctx)
		if err != nil {
			log.Printf("[Worker] Error claiming job: %v", err)
			return
		}
		if job == nil {
			return // nothing pending
		}

		log.Printf("[Worker] Processing job %s (project %s)", job.ID, job.ProjectID)
		w.processJob(ctx, job)
	}
}

// processJob runs one job's pipeline and converts the outcome into a
// terminal status. Every failure — input, subprocess, output-integrity,
// infrastructure, even a panic — becomes a failed status with a
// human-readable message; one job's failure never halts the queue.
func (w *Worker) processJob(ctx context.Context, job *models.VideoJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker] Job %s panicked: %v", job.ID, r)
			w.fail(ctx, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	last := job.Progress
	progress := func(p int) {
		if p <= last || p > 100 {
			return
		}
		last = p
		if err := w.store.UpdateJobProgress(ctx, job.ID, p); err != nil {
			log.Printf("[Worker] Warning: failed to update progress for %s: %v", job.ID, err)
		}
	}

	result, err := w.renderer.Render(ctx, job.ID, job.ProjectID, job.Settings, progress)
	if err != nil {
		log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		w.fail(ctx, job.ID, err.Error())
		return
	}

	if err := w.store.CompleteJob(ctx, job.ID, result.VideoURL, result.FileSize); err != nil {
		log.Printf("[Worker] Error: failed to mark job %s completed: %v", job.ID, err)
		return
	}
	log.Printf("[Worker] Job %s completed (%d bytes)", job.ID, result.FileSize)
}

func (w *Worker) fail(ctx context.Context, id uuid.UUID, message string) {
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen] + "..."
	}
	if err := w.store.FailJob(ctx, id, message); err != nil {
		log.Printf("[Worker] Error: failed to mark job %s failed: %v", id, err)
	}
}
