package jobs

import (
	"fmt"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
)

var transitions = map[domain.JobState][]domain.JobState{
	domain.JobPending: {domain.JobRunning},
	domain.JobRunning: {domain.JobCompleted, domain.JobFailed},
}

func canTransition(from, to domain.JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advance moves job to state, refusing anything outside
// pending -> running -> completed|failed.
func advance(job *domain.Job, to domain.JobState, now func() time.Time) error {
	if !canTransition(job.State, to) {
		return fmt.Errorf("invalid job transition %s -> %s", job.State, to)
	}
	job.State = to
	job.UpdatedAt = now().UTC()
	return nil
}

// markFailed forces job into the failed state with reason as its result. It
// is the only way out of pending or running that skips the normal order.
func markFailed(job *domain.Job, reason string, now func() time.Time) {
	job.State = domain.JobFailed
	job.UpdatedAt = now().UTC()
	job.Result = &domain.TaskResult{Success: false, Error: reason}
}
