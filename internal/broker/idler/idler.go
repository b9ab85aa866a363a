// Package idler provides the default cooperative scheduler the
// dispatcher runs under: it bounds how many job handlers run
// concurrently and lets Stop join every handler it spawned.
package idler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Idler is a bounded, structured-concurrency task runner. Acquire blocks
// until a slot is free or ctx is cancelled, which is what paces the
// dispatcher: it only fetches the next job once it is ready to spawn a
// handler for it, bounding concurrent handlers instead of spawning one
// goroutine per fetched job.
type Idler struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New builds an Idler that runs at most concurrency handlers at once.
func New(concurrency int64) *Idler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Idler{sem: semaphore.NewWeighted(concurrency)}
}

// Acquire reserves one slot, blocking until one is available or ctx is
// done. Callers that successfully Acquire must eventually call Release.
func (i *Idler) Acquire(ctx context.Context) error {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	i.wg.Add(1)
	return nil
}

// Release frees the slot acquired by a prior successful Acquire.
func (i *Idler) Release() {
	i.wg.Done()
	i.sem.Release(1)
}

// Go acquires a slot, runs fn in its own goroutine, and releases the slot
// when fn returns. It blocks until a slot is free or ctx is cancelled.
func (i *Idler) Go(ctx context.Context, fn func()) error {
	if err := i.Acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer i.Release()
		fn()
	}()
	return nil
}

// Wait blocks until every slot taken by Acquire (directly or via Go) has
// been released. Stop calls this so it joins the dispatcher's children
// before returning.
func (i *Idler) Wait() {
	i.wg.Wait()
}
