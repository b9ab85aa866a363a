// Package processing implements the per-worker in-flight buffer (spec.md
// §4.4): it fetches jobs into the worker's own pending list, finalizes
// them (complete/retry), and recovers jobs orphaned by workers whose
// liveness key has expired.
package processing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/asyncbroker/jobbroker/internal/broker/codec"
	"github.com/asyncbroker/jobbroker/internal/broker/keys"
	"github.com/asyncbroker/jobbroker/internal/broker/readyqueue"
	"github.com/asyncbroker/jobbroker/internal/broker/store"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

// livenessValue is the small encoded object spec.md §3/§6 calls for: a
// blob whose presence means "this worker is alive", carrying at minimum
// the worker's uptime for operator diagnostics.
type livenessValue struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type List struct {
	driver store.Driver
	ready  *readyqueue.Queue
	codec  codec.Codec
	ns     keys.Namespace
	log    *logger.Logger

	workerID     string
	pendingKey   string
	heartbeatKey string
	startTime    time.Time

	completeCount atomic.Int64
}

// New builds the processing list owned exclusively by workerID.
func New(driver store.Driver, ready *readyqueue.Queue, c codec.Codec, ns keys.Namespace, workerID string, log *logger.Logger) *List {
	return &List{
		driver:       driver,
		ready:        ready,
		codec:        c,
		ns:           ns,
		workerID:     workerID,
		pendingKey:   ns.Pending(workerID),
		heartbeatKey: ns.Heartbeat(workerID),
		startTime:    time.Now(),
		log:          log.With("component", "processing.List", "worker_id", workerID),
	}
}

// Size returns the current length of this worker's pending list.
func (l *List) Size(ctx context.Context) (int64, error) {
	return l.driver.ListLen(ctx, l.pendingKey)
}

// CompleteCount returns the cumulative number of jobs this worker has
// completed, for status reporting. It is purely a local counter — it
// does not survive process restart and is not shared across workers.
func (l *List) CompleteCount() int64 {
	return l.completeCount.Load()
}

// Fetch blocks until a job can be moved from the ready queue into this
// worker's pending list, and returns its id.
func (l *List) Fetch(ctx context.Context) (string, error) {
	return l.ready.BlockingFetchInto(ctx, l.pendingKey)
}

// Complete atomically removes id from the pending list and deletes its
// payload from the job store. Safe to call on an id no longer present
// (the list removal is then a no-op) — double-complete deletes nothing
// on its second call and still returns without error (spec P5).
func (l *List) Complete(ctx context.Context, id string) error {
	if err := l.driver.Complete(ctx, l.pendingKey, l.ns.Jobs(), id); err != nil {
		return err
	}
	l.completeCount.Add(1)
	return nil
}

// Retry atomically removes id from the pending list and appends it to
// the ready queue. Safe to call with an id not (or no longer) in the
// pending list; the removal is then a no-op (spec §4.4).
func (l *List) Retry(ctx context.Context, id string) error {
	if err := l.driver.Retry(ctx, l.pendingKey, l.ns.Ready(), id); err != nil {
		return err
	}
	l.log.Warn("Retrying job", "job_id", id)
	return nil
}

// Requeue refreshes this worker's own liveness key, then scans every
// pending list under the processing namespace for one whose owner's
// liveness key is absent, draining each such list back onto the ready
// queue. It returns the total number of ids recovered.
//
// Liveness is checked once, before a given list's drain begins, not
// per-element: if a dead worker's liveness key reappears mid-drain the
// drain still empties the list (spec §9 O2). A worker that returns from
// a liveness lapse must not assume its own pending list survived.
func (l *List) Requeue(ctx context.Context, delay time.Duration, factor float64) (int, error) {
	uptime := time.Since(l.startTime).Seconds()
	payload, err := l.codec.Dump(livenessValue{UptimeSeconds: uptime})
	if err != nil {
		return 0, fmt.Errorf("processing: encode liveness: %w", err)
	}
	ttl := time.Duration(float64(delay) * factor)
	if ttl < delay {
		ttl = delay // factor < 1 would violate the "factor >= 2" invariant; never shrink below one interval
	}
	if err := l.driver.SetLiveness(ctx, l.heartbeatKey, payload, ttl); err != nil {
		return 0, err
	}

	var recovered int
	scanErr := l.driver.ScanPendingKeys(ctx, l.ns.PendingPattern(), func(pendingKey string) error {
		ownerID, ok := keys.WorkerIDFromPending(l.ns.ProcessingBase(), pendingKey)
		if !ok || ownerID == l.workerID {
			return nil
		}
		alive, err := l.driver.LivenessExists(ctx, l.ns.Heartbeat(ownerID))
		if err != nil {
			return err
		}
		if alive {
			return nil
		}
		n, err := l.driver.DrainPendingList(ctx, pendingKey, l.ns.Ready())
		if err != nil {
			return err
		}
		recovered += int(n)
		return nil
	})
	if scanErr != nil {
		return recovered, scanErr
	}
	return recovered, nil
}

// RunHeartbeat runs perpetually until ctx is cancelled: refresh liveness,
// recover any abandoned pending lists, sleep delay, repeat. Cancellation
// stops the loop cleanly between cycles — it never leaves a pending list
// partially drained, since each per-job move inside Requeue is atomic.
func (l *List) RunHeartbeat(ctx context.Context, delay time.Duration, factor float64) {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		n, err := l.Requeue(ctx, delay, factor)
		if err != nil {
			l.log.Warn("requeue failed", "error", err)
		} else if n > 0 {
			l.log.Warn("recovered abandoned jobs", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
