package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/lunaos-ai/OpenHands/internal/logging"
	"github.com/lunaos-ai/OpenHands/internal/metrics"
	"github.com/lunaos-ai/OpenHands/internal/middleware"
	"go.uber.org/zap"
)

var ErrRunnerClosed = errors.New("job runner is shutting down")

type TaskExecutor interface {
	Execute(ctx context.Context, req domain.TaskRequest) domain.TaskResult
}

// Runner executes tasks in the background and is the only writer of job
// state. The store holds snapshots for polling.
type Runner struct {
	store    Store
	executor TaskExecutor
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func NewRunner(store Store, executor TaskExecutor, logger *zap.Logger) *Runner {
	logger = logging.OrNop(logger)
	return &Runner{
		store:    store,
		executor: executor,
		logger:   logger.With(zap.String("component", "jobs")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit records a pending job and starts it. The task runs detached from
// ctx's cancellation so it outlives the HTTP request that created it.
func (r *Runner) Submit(ctx context.Context, req domain.TaskRequest) (domain.Job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.Job{}, ErrRunnerClosed
	}
	r.running.Add(1)
	r.mu.Unlock()

	now := r.now().UTC()
	job := domain.Job{
		ID:        r.newID(),
		State:     domain.JobPending,
		TaskType:  req.TaskType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Save(ctx, job); err != nil {
		r.running.Done()
		return domain.Job{}, err
	}
	metrics.RecordJobTransition(string(domain.JobPending))

	go r.run(context.WithoutCancel(ctx), job, req)
	return job, nil
}

func (r *Runner) Get(ctx context.Context, id string) (domain.Job, error) {
	return r.store.Get(ctx, id)
}

func (r *Runner) run(ctx context.Context, job domain.Job, req domain.TaskRequest) {
	defer r.running.Done()
	log := r.logger.With(
		zap.String("job_id", job.ID),
		zap.String("request_id", middleware.RequestIDFromContext(ctx)),
	)

	if err := r.transition(ctx, log, &job, domain.JobRunning); err != nil {
		r.fail(ctx, log, job, err)
		return
	}

	result := r.executor.Execute(ctx, req)
	job.Result = &result
	next := domain.JobCompleted
	if !result.Success {
		next = domain.JobFailed
	}
	if err := r.transition(ctx, log, &job, next); err != nil {
		r.fail(ctx, log, job, err)
	}
}

func (r *Runner) transition(ctx context.Context, log *zap.Logger, job *domain.Job, to domain.JobState) error {
	if err := advance(job, to, r.now); err != nil {
		return err
	}
	if err := r.store.Save(ctx, *job); err != nil {
		log.Error("job snapshot not saved", zap.String("state", string(to)), zap.Error(err))
		return fmt.Errorf("save %s snapshot: %w", to, err)
	}
	metrics.RecordJobTransition(string(to))
	log.Info("job transition", zap.String("state", string(to)))
	return nil
}

// fail makes one attempt to persist a terminal failed snapshot after a
// transition could not be saved, so pollers do not wait on a stale state.
func (r *Runner) fail(ctx context.Context, log *zap.Logger, job domain.Job, cause error) {
	markFailed(&job, "Job state not persisted: "+cause.Error(), r.now)
	if err := r.store.Save(ctx, job); err != nil {
		log.Error("failed snapshot not saved", zap.Error(err))
		return
	}
	metrics.RecordJobTransition(string(domain.JobFailed))
	log.Warn("job failed", zap.Error(cause))
}

// Shutdown rejects new jobs and waits for running ones or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
