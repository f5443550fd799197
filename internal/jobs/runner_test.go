package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFunc func(ctx context.Context, req domain.TaskRequest) domain.TaskResult

func (f executorFunc) Execute(ctx context.Context, req domain.TaskRequest) domain.TaskResult {
	return f(ctx, req)
}

type failingStore struct{ Store }

func (failingStore) Save(context.Context, domain.Job) error { return errors.New("store down") }

func waitForState(t *testing.T, runner *Runner, id string, state domain.JobState) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = runner.Get(context.Background(), id)
		return err == nil && job.State == state
	}, time.Second, 5*time.Millisecond)
	return job
}

func TestRunnerCompletesJob(t *testing.T) {
	release := make(chan struct{})
	runner := NewRunner(NewMemoryStore(10, time.Minute), executorFunc(func(ctx context.Context, req domain.TaskRequest) domain.TaskResult {
		<-release
		return domain.TaskResult{Success: true, Data: &domain.TaskData{Result: "hello", Raw: "hello"}}
	}), nil)
	runner.newID = func() string { return "job-1" }

	ctx, cancel := context.WithCancel(context.Background())
	job, err := runner.Submit(ctx, domain.TaskRequest{TaskType: "ping", Prompt: "say hi"})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobPending, job.State)

	waitForState(t, runner, "job-1", domain.JobRunning)
	close(release)

	done := waitForState(t, runner, "job-1", domain.JobCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, "hello", done.Result.ResultText())
	assert.Equal(t, domain.TaskType("ping"), done.TaskType)
	assert.False(t, done.UpdatedAt.Before(done.CreatedAt))
	require.NoError(t, runner.Shutdown(context.Background()))
}

func TestRunnerMarksFailedEnvelope(t *testing.T) {
	runner := NewRunner(NewMemoryStore(10, time.Minute), executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		return domain.TaskResult{Success: false, Error: "No LLM API key configured"}
	}), nil)

	job, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	require.NoError(t, err)

	failed := waitForState(t, runner, job.ID, domain.JobFailed)
	assert.Equal(t, "No LLM API key configured", failed.Result.Error)
}

func TestRunnerShutdownRejectsNewJobs(t *testing.T) {
	runner := NewRunner(NewMemoryStore(10, time.Minute), executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		return domain.TaskResult{Success: true, Data: &domain.TaskData{}}
	}), nil)
	require.NoError(t, runner.Shutdown(context.Background()))

	_, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestRunnerShutdownWaitsForRunningJobs(t *testing.T) {
	release := make(chan struct{})
	runner := NewRunner(NewMemoryStore(10, time.Minute), executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		<-release
		return domain.TaskResult{Success: true, Data: &domain.TaskData{}}
	}), nil)
	_, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, runner.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, runner.Shutdown(context.Background()))
}

func TestRunnerSubmitStoreFailure(t *testing.T) {
	runner := NewRunner(failingStore{}, executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		t.Fatal("executor must not run")
		return domain.TaskResult{}
	}), nil)

	_, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	assert.EqualError(t, err, "store down")
	assert.NoError(t, runner.Shutdown(context.Background()))
}

func TestTransitions(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	job := domain.Job{State: domain.JobPending}

	assert.Error(t, advance(&job, domain.JobCompleted, now))
	require.NoError(t, advance(&job, domain.JobRunning, now))
	require.NoError(t, advance(&job, domain.JobFailed, now))
	assert.Error(t, advance(&job, domain.JobRunning, now))

	pending := domain.Job{State: domain.JobPending}
	markFailed(&pending, "boom", now)
	assert.Equal(t, domain.JobFailed, pending.State)
	require.NotNil(t, pending.Result)
	assert.False(t, pending.Result.Success)
	assert.Equal(t, "boom", pending.Result.Error)
	assert.Error(t, advance(&pending, domain.JobRunning, now))
}

// flakyStore fails exactly the failOn-th Save and delegates the rest.
type flakyStore struct {
	Store
	mu     sync.Mutex
	saves  int
	failOn int
}

func (s *flakyStore) Save(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	s.saves++
	n := s.saves
	s.mu.Unlock()
	if n == s.failOn {
		return errors.New("store down")
	}
	return s.Store.Save(ctx, job)
}

func TestRunnerFailsJobWhenRunningSnapshotIsLost(t *testing.T) {
	var executed atomic.Bool
	store := &flakyStore{Store: NewMemoryStore(10, time.Minute), failOn: 2}
	runner := NewRunner(store, executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		executed.Store(true)
		return domain.TaskResult{Success: true, Data: &domain.TaskData{}}
	}), nil)

	job, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	require.NoError(t, err)

	failed := waitForState(t, runner, job.ID, domain.JobFailed)
	require.NotNil(t, failed.Result)
	assert.Equal(t, "Job state not persisted: save running snapshot: store down", failed.Result.Error)
	require.NoError(t, runner.Shutdown(context.Background()))
	assert.False(t, executed.Load())
}

func TestRunnerFailsJobWhenFinalSnapshotIsLost(t *testing.T) {
	store := &flakyStore{Store: NewMemoryStore(10, time.Minute), failOn: 3}
	runner := NewRunner(store, executorFunc(func(context.Context, domain.TaskRequest) domain.TaskResult {
		return domain.TaskResult{Success: true, Data: &domain.TaskData{Result: "hello", Raw: "hello"}}
	}), nil)

	job, err := runner.Submit(context.Background(), domain.TaskRequest{TaskType: "ping", Prompt: "x"})
	require.NoError(t, err)

	failed := waitForState(t, runner, job.ID, domain.JobFailed)
	require.NotNil(t, failed.Result)
	assert.False(t, failed.Result.Success)
	assert.Equal(t, "Job state not persisted: save completed snapshot: store down", failed.Result.Error)
	require.NoError(t, runner.Shutdown(context.Background()))
}
