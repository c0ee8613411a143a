package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/runflo/runflo/types"
)

// Pool distributes specs across a bounded set of workers and streams
// Results back in completion order. At most Concurrency units are in
// flight at any moment; with stop-on-failure enabled the pool stops
// admitting new work after the first FAIL but drains everything already
// dispatched so no worker is orphaned.
type Pool struct {
	runner        *Runner
	concurrency   int
	stopOnFailure bool
	log           log.Logger
}

// NewPool creates a Pool. Concurrency below 1 is treated as 1.
func NewPool(r *Runner, concurrency int, stopOnFailure bool) *Pool {
	if r == nil {
		panic("runner cannot be nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 64 {
		r.log.Warn("Very high concurrency requested", "concurrency", concurrency)
	}
	return &Pool{
		runner:        r,
		concurrency:   concurrency,
		stopOnFailure: stopOnFailure,
		log:           r.log.New("component", "pool"),
	}
}

// Run consumes specs and returns the stream of Results. The returned
// channel is closed once every admitted unit has completed. Results are
// delivered in completion order; submission order is not preserved.
func (p *Pool) Run(ctx context.Context, specs <-chan types.Spec) <-chan *types.Result {
	if p.concurrency == 1 {
		return p.runSequential(ctx, specs)
	}
	return p.runConcurrent(ctx, specs)
}

// runSequential is the degenerate single-flow path: no pool machinery,
// identical stop-on-failure behavior.
func (p *Pool) runSequential(ctx context.Context, specs <-chan types.Spec) <-chan *types.Result {
	out := make(chan *types.Result)
	go func() {
		defer close(out)
		defer p.runner.persistCoverage()
		for spec := range specs {
			failed := false
			for _, res := range p.safeRun(ctx, spec) {
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				if res.Status == types.StatusFail {
					failed = true
				}
			}
			if p.stopOnFailure && failed {
				p.log.Info("Stopping on first failure", "spec", spec)
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

func (p *Pool) runConcurrent(ctx context.Context, specs <-chan types.Spec) <-chan *types.Result {
	out := make(chan *types.Result)
	work := make(chan types.Spec) // unbuffered keeps in-flight at min(N, remaining)
	results := make(chan []*types.Result, p.concurrency)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, i, &wg, work, results)
	}

	// feeder: admit work until the source is exhausted, the stop signal
	// fires, or the context is cancelled. Closing the work channel is the
	// stop sentinel for every worker.
	go func() {
		defer close(work)
		for {
			select {
			case spec, ok := <-specs:
				if !ok {
					return
				}
				select {
				case work <- spec:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(out)
		stopped := false
		for batch := range results {
			for _, res := range batch {
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				if p.stopOnFailure && !stopped && res.Status == types.StatusFail {
					p.log.Info("Stopping admission after failure", "spec", res.Spec)
					close(stop)
					stopped = true
				}
			}
		}
	}()

	return out
}

// worker executes one spec at a time. A fault while processing one item is
// converted into a FAIL Result and the worker keeps accepting further
// items.
func (p *Pool) worker(ctx context.Context, id int, wg *sync.WaitGroup, work <-chan types.Spec, results chan<- []*types.Result) {
	defer wg.Done()
	defer p.runner.persistCoverage()
	p.log.Debug("Worker starting", "worker", id)
	defer p.log.Debug("Worker exiting", "worker", id)

	for spec := range work {
		batch := p.safeRun(ctx, spec)
		select {
		case results <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// safeRun guarantees a usable batch of results even if the runner itself
// misbehaves for this item.
func (p *Pool) safeRun(ctx context.Context, spec types.Spec) (batch []*types.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("Worker fault while processing item", "spec", spec, "panic", rec)
			batch = []*types.Result{types.NewSyntheticFailure(spec, fmt.Sprintf("worker fault: %v", rec))}
		}
	}()
	batch = p.runner.RunOne(ctx, spec)
	if len(batch) == 0 {
		batch = []*types.Result{types.NewSyntheticFailure(spec, "unit produced no result")}
	}
	return batch
}
