// Package pipeline composes streaming Result consumers. Each stage
// observes a stream of Results and re-emits every one of them unmodified;
// side effects (list files, reports, metrics) happen as results flow
// through, never by buffering the whole run.
package pipeline

import (
	"github.com/runflo/runflo/types"
)

// Stage is one link of the result pipeline. Process must forward every
// Result it consumes, as soon as it has performed its own side effect, and
// must close its output once the input is exhausted. Stages whose explicit
// purpose is filtering are the only exception to pass-through.
type Stage interface {
	Name() string
	Process(in <-chan *types.Result) <-chan *types.Result
}

// Chain wires stages in order: stage k's output is stage k+1's input. The
// returned channel is the last stage's output.
func Chain(src <-chan *types.Result, stages ...Stage) <-chan *types.Result {
	out := src
	for _, s := range stages {
		out = s.Process(out)
	}
	return out
}

// passthrough runs fn for every result on its own goroutine and forwards
// the result immediately. A nil done is allowed; otherwise done runs after
// the input is exhausted, before the output closes.
func passthrough(in <-chan *types.Result, fn func(*types.Result), done func()) <-chan *types.Result {
	out := make(chan *types.Result)
	go func() {
		defer close(out)
		for res := range in {
			if fn != nil {
				fn(res)
			}
			out <- res
		}
		if done != nil {
			done()
		}
	}()
	return out
}
