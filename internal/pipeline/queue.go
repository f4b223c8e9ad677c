package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/job"
)

// Queue dispatches jobs to a bounded worker pool. Durability lives in the
// jobs table, not here: the channel only carries work for this process, and
// anything in flight at crash time is re-enqueued by Recover on the next
// start.
type Queue struct {
	executor *Executor
	jobs     *job.Store
	pool     *ants.Pool
	ch       chan *job.Job
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewQueue creates a queue backed by a fixed-size worker pool.
func NewQueue(executor *Executor, jobs *job.Store, workers int, logger *zap.Logger) (*Queue, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		executor: executor,
		jobs:     jobs,
		pool:     pool,
		ch:       make(chan *job.Job, 1024),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the dispatcher. It must be called exactly once.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.dispatch()
}

// Recover re-enqueues every non-terminal job found in the store. Called at
// startup before the HTTP server begins accepting uploads.
func (q *Queue) Recover(ctx context.Context) error {
	pending, err := q.jobs.Pending(ctx)
	if err != nil {
		return fmt.Errorf("loading pending jobs: %w", err)
	}
	for _, j := range pending {
		q.logger.Info("recovering interrupted job",
			zap.String("job_id", j.ID),
			zap.String("stage", string(j.Stage)),
			zap.Int("retry_count", j.RetryCount))
		q.Enqueue(j)
	}
	if len(pending) > 0 {
		q.logger.Info("pending jobs recovered", zap.Int("count", len(pending)))
	}
	return nil
}

// Enqueue hands a job to the dispatcher. The job and its document row must
// already be durable.
func (q *Queue) Enqueue(j *job.Job) {
	select {
	case q.ch <- j:
	case <-q.ctx.Done():
	}
}

// dispatch feeds queued jobs into the pool. pool.Submit blocks while all
// workers are busy, which keeps concurrency bounded without dropping work.
func (q *Queue) dispatch() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case j := <-q.ch:
			q.wg.Add(1)
			err := q.pool.Submit(func() {
				defer q.wg.Done()
				q.executor.Run(q.ctx, j)
			})
			if err != nil {
				q.wg.Done()
				if q.ctx.Err() != nil {
					return
				}
				q.logger.Error("submitting job to pool",
					zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}
}

// Close stops accepting work and waits for in-flight jobs to observe
// cancellation. Interrupted jobs stay non-terminal and are recovered on the
// next start.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.cancel()
		q.wg.Wait()
		q.pool.Release()
	})
}
