// Package readyqueue implements the FIFO of jobs eligible to run right
// now: the rendezvous between producers (submit, sweeper, retry,
// recovery) and the dispatcher.
package readyqueue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/asyncbroker/jobbroker/internal/broker/store"
)

// defaultPollTimeout bounds how long a single BlockingFetchInto call
// waits on the store before rechecking ctx; it is not a user-visible
// timeout, Fetch blocks indefinitely unless ctx is cancelled.
const defaultPollTimeout = 2 * time.Second

type Queue struct {
	driver   store.Driver
	jobsKey  string
	readyKey string
}

func New(driver store.Driver, jobsKey, readyKey string) *Queue {
	return &Queue{driver: driver, jobsKey: jobsKey, readyKey: readyKey}
}

// SubmitReady mints a fresh job id, atomically writes payload to the job
// store and appends the id to the ready queue's newest end. No observer
// can see the id on the queue before its payload is visible (I1).
func (q *Queue) SubmitReady(ctx context.Context, payload []byte) (string, error) {
	id := uuid.NewString()
	if err := q.driver.SubmitReady(ctx, q.jobsKey, q.readyKey, id, payload); err != nil {
		return "", err
	}
	return id, nil
}

// BlockingFetchInto blocks until an id can be moved from the ready
// queue's oldest end to pendingKey's newest end, and returns it. It has
// no timeout in normal operation; cancelling ctx is the only way out.
func (q *Queue) BlockingFetchInto(ctx context.Context, pendingKey string) (string, error) {
	for {
		id, ok, err := q.driver.BlockingFetch(ctx, q.readyKey, pendingKey, defaultPollTimeout)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
	}
}

// PushFront appends id to the ready queue's newest end — the same end
// that retry and recovery append to through their own store scripts, so
// a retried job lands behind newer submissions rather than jumping the
// FIFO (spec §9 O4).
func (q *Queue) PushFront(ctx context.Context, id string) error {
	return q.driver.PushFront(ctx, q.readyKey, id)
}

// Len reports the current queue size, for status reporting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.driver.ListLen(ctx, q.readyKey)
}
