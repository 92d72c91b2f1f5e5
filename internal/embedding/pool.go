package embedding

import (
	"context"
	"sync"
)

// job is a single embedding request dispatched to the pool.
type job struct {
	ctx    context.Context
	text   string
	result chan<- jobResult
}

type jobResult struct {
	vec []float32
	err error
}

// Pool runs a fixed number of worker goroutines computing embeddings,
// so CPU-bound embedding work is isolated from the HTTP request
// goroutines and bounded in concurrency rather than growing without
// limit under load. The lifecycle mirrors a background poller: Start
// launches the workers, Stop cancels them and waits for shutdown.
type Pool struct {
	embedder Embedder
	workers  int

	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a pool of the given size wrapping embedder. workers
// <= 0 defaults to 4.
func NewPool(embedder Embedder, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		embedder: embedder,
		workers:  workers,
		jobs:     make(chan job, workers*4),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutines. Calling Start more than once
// has no additional effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel

		var wg sync.WaitGroup
		for i := 0; i < p.workers; i++ {
			wg.Add(1)
			go p.worker(ctx, &wg)
		}
		go func() {
			wg.Wait()
			close(p.done)
		}()
	})
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			vec, err := p.embedder.Embed(j.ctx, j.text)
			select {
			case j.result <- jobResult{vec: vec, err: err}:
			case <-j.ctx.Done():
			}
		}
	}
}

// Stop cancels all workers and waits for them to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		<-p.done
	})
}

// Dim returns the embedding dimension of the wrapped embedder.
func (p *Pool) Dim() int { return p.embedder.Dim() }

// Embed dispatches text to a worker and blocks until the result is
// ready or ctx is canceled, whichever comes first.
func (p *Pool) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(chan jobResult, 1)
	select {
	case p.jobs <- job{ctx: ctx, text: text, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
