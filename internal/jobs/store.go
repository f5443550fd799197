package jobs

import (
	"context"
	"errors"

	"github.com/lunaos-ai/OpenHands/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// Store persists job snapshots. Entries expire on their own; a Get after
// expiry reports ErrJobNotFound.
type Store interface {
	Save(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, error)
}
