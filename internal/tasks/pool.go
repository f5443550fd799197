package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/lunaos-ai/OpenHands/internal/metrics"
	"golang.org/x/sync/semaphore"
)

const defaultPoolSize = 16

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool bounds the number of provider calls in flight. A slot stays held until
// the provider call returns, even when the caller has stopped waiting for it.
type Pool struct {
	sem *semaphore.Weighted

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = defaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to call more than once.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.inflight.Done()
		return nil, err
	}
	metrics.PoolAcquired()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.sem.Release(1)
			metrics.PoolReleased()
			p.inflight.Done()
		})
	}, nil
}

// Close stops handing out slots and waits for held slots to be released or
// for ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
