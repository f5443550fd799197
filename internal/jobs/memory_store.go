package jobs

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lunaos-ai/OpenHands/internal/domain"
)

const defaultMaxEntries = 1000

// MemoryStore keeps jobs in a size-bounded LRU with per-entry TTL.
type MemoryStore struct {
	cache *expirable.LRU[string, domain.Job]
}

func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{cache: expirable.NewLRU[string, domain.Job](maxEntries, nil, ttl)}
}

func (s *MemoryStore) Save(_ context.Context, job domain.Job) error {
	s.cache.Add(job.ID, job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Job, error) {
	job, ok := s.cache.Get(id)
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}
