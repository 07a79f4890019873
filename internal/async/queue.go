// Package async runs document processing on a bounded worker queue so the
// inbox watcher never blocks on a slow OCR or LLM call.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmaia/inbound-recon/internal/pipeline"
)

// Job is one processing request.
type Job struct {
	DocumentID  uuid.UUID
	FirstPass   bool // apply received quantities to order lines
	SubmittedAt time.Time
}

// Queue accepts processing jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ProcessorQueue fans jobs out to a fixed pool of pipeline workers.
type ProcessorQueue struct {
	proc    *pipeline.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	intake sync.WaitGroup // enqueuers in flight; the channel closes only after they drain
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc *pipeline.Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.proc.Process(ctx, job.DocumentID, job.FirstPass)
					cancel()

					if err != nil {
						q.logger.Error("async.process.failed",
							"worker_id", workerID, "document_id", job.DocumentID,
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds(), "error", err)
					} else {
						q.logger.Info("async.process.ok",
							"worker_id", workerID, "document_id", job.DocumentID,
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds())
					}
				}

				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue queues a job, blocking when the buffer is full until ctx is done.
// Jobs submitted after Shutdown are dropped. The mutex guards only the closed
// flag; the send itself happens outside it so a full buffer never stalls
// other enqueuers or Shutdown.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("async.enqueue.rejected", "document_id", job.DocumentID)
		return nil
	}
	q.intake.Add(1)
	q.mu.Unlock()
	defer q.intake.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("async.queue.full", "document_id", job.DocumentID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for in-flight jobs, bounded by ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// in-flight enqueuers registered before the flag flipped; wait for them
	// so the close below cannot race a send
	q.intake.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
