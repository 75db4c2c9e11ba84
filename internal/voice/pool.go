package voice

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Run after Close
var ErrPoolClosed = errors.New("voice pool closed")

// Pool runs blocking voice jobs on a bounded set of goroutines separate
// from the callers serving requests.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool running at most workers jobs at once
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on the pool and waits for its result. If ctx is done
// first Run returns ctx.Err(); the job itself is not interrupted beyond the
// context it receives.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return zero, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close rejects new jobs and waits for running ones to finish
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
