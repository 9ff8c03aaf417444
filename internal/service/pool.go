package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// InferencePool bounds the number of in-flight model calls across all requests.
// With serialize set, calls to the same model never overlap, for runtimes that are
// not safe for concurrent use. Waiting for either slot honors ctx.
type InferencePool struct {
	sem       *semaphore.Weighted
	serialize bool

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewInferencePool creates a pool with the given number of workers (minimum 1).
func NewInferencePool(workers int, serialize bool) *InferencePool {
	if workers < 1 {
		workers = 1
	}
	return &InferencePool{
		sem:       semaphore.NewWeighted(int64(workers)),
		serialize: serialize,
		locks:     make(map[string]*semaphore.Weighted),
	}
}

// Do runs fn for model once a worker slot is free.
func (p *InferencePool) Do(ctx context.Context, model string, fn func(context.Context) error) error {
	if p.serialize {
		l := p.lock(model)
		if err := l.Acquire(ctx, 1); err != nil {
			return err
		}
		defer l.Release(1)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	return fn(ctx)
}

func (p *InferencePool) lock(model string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[model]
	if !ok {
		l = semaphore.NewWeighted(1)
		p.locks[model] = l
	}
	return l
}
