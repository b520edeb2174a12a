package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(jobID uuid.UUID)
}

type WorkerOptions struct {
	Concurrency  int
	QueueSize    int
	PollInterval time.Duration
	// StaleAfter is how long an in-flight job may go without progress before
	// the poller fails it.
	StaleAfter time.Duration
	// ShutdownTimeout bounds how long Stop waits for running jobs before
	// cancelling them.
	ShutdownTimeout time.Duration
}

type worker struct {
	jobRepo         repositories.JobRepository
	runner          PipelineRunner
	jobQueue        chan uuid.UUID
	concurrency     int
	pollInterval    time.Duration
	staleAfter      time.Duration
	shutdownTimeout time.Duration

	mu     sync.Mutex
	queued map[uuid.UUID]struct{}

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	log      *slog.Logger
}

func NewWorker(
	jobRepo repositories.JobRepository,
	runner PipelineRunner,
	opts WorkerOptions,
	log *slog.Logger,
) Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	return &worker{
		jobRepo:         jobRepo,
		runner:          runner,
		jobQueue:        make(chan uuid.UUID, opts.QueueSize),
		concurrency:     opts.Concurrency,
		pollInterval:    opts.PollInterval,
		staleAfter:      opts.StaleAfter,
		shutdownTimeout: opts.ShutdownTimeout,
		queued:          make(map[uuid.UUID]struct{}),
		cancel:          func() {},
		stopChan:        make(chan struct{}),
		log:             log.With("component", "worker"),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	w.log.Info("🚀 Starting worker", "concurrency", w.concurrency)

	ctx, w.cancel = context.WithCancel(ctx)

	// Jobs a dead process left mid-run would otherwise never finish.
	w.failStaleJobs()

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	// Jobs left PENDING by a restart or a full queue are picked up here.
	w.wg.Add(1)
	go w.pollPendingJobs(ctx)

	w.log.Info("✅ Worker started successfully")
}

// Stop implements Worker. Running jobs get ShutdownTimeout to finish; after
// that their context is cancelled and the pipeline records them as FAILED.
// Stop returns once every goroutine has exited.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info("🛑 Stopping worker...")
		close(w.stopChan)

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(w.shutdownTimeout):
			w.log.Warn("⚠️ Jobs still running, interrupting them", "timeout", w.shutdownTimeout)
			w.cancel()
			<-done
		}
		w.cancel()
		w.log.Info("✅ Worker stopped")
	})
}

// EnqueueJob implements Worker. It never blocks the caller; a job that does
// not fit in the queue stays PENDING until the next poll. A job already
// waiting in the queue is not added twice.
func (w *worker) EnqueueJob(jobID uuid.UUID) {
	select {
	case <-w.stopChan:
		w.log.Warn("⚠️ Worker stopped, cannot enqueue job", "job_id", jobID)
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queued[jobID]; ok {
		return
	}

	select {
	case w.jobQueue <- jobID:
		w.queued[jobID] = struct{}{}
		w.log.Debug("📥 Job enqueued", "job_id", jobID)
	default:
		w.log.Warn("⚠️ Job queue full, job left for the poller", "job_id", jobID)
	}
}

func (w *worker) dequeued(jobID uuid.UUID) {
	w.mu.Lock()
	delete(w.queued, jobID)
	w.mu.Unlock()
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log := w.log.With("worker", workerID)

	for {
		select {
		case <-w.stopChan:
			log.Debug("👷 Worker stopped")
			return
		case <-ctx.Done():
			return
		case jobID := <-w.jobQueue:
			w.dequeued(jobID)
			if err := w.runner.Run(ctx, jobID); err != nil {
				log.Error("❌ Failed to process job", "job_id", jobID, "error", err)
			}
		}
	}
}

func (w *worker) pollPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			w.log.Debug("🔄 Pending jobs poller stopped")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.failStaleJobs()

			pendingJobs, err := w.jobRepo.FindPendingJobs(cap(w.jobQueue))
			if err != nil {
				w.log.Warn("⚠️ Failed to fetch pending jobs", "error", err)
				continue
			}

			if len(pendingJobs) > 0 {
				w.log.Info("📋 Found pending jobs", "count", len(pendingJobs))
			}

			for _, job := range pendingJobs {
				w.EnqueueJob(job.ID)
			}
		}
	}
}

func (w *worker) failStaleJobs() {
	n, err := w.jobRepo.FailStale(time.Now().Add(-w.staleAfter), InterruptedMessage, map[string]any{
		"error_type": string(apperrors.KindInternal),
		"reason":     "stale",
	})
	if err != nil {
		w.log.Warn("⚠️ Failed to fail stale jobs", "error", err)
		return
	}
	if n > 0 {
		w.log.Warn("⚠️ Failed stale in-flight jobs", "count", n)
	}
}
