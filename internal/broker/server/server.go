// Package server composes the job store, ready queue, delayed set and
// processing list into the single entry point callers and workers use:
// submit, dispatch to a delegate, and run the background maintenance
// loops.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asyncbroker/jobbroker/internal/broker/codec"
	"github.com/asyncbroker/jobbroker/internal/broker/delayedset"
	"github.com/asyncbroker/jobbroker/internal/broker/idler"
	"github.com/asyncbroker/jobbroker/internal/broker/jobstore"
	"github.com/asyncbroker/jobbroker/internal/broker/keys"
	"github.com/asyncbroker/jobbroker/internal/broker/processing"
	"github.com/asyncbroker/jobbroker/internal/broker/readyqueue"
	"github.com/asyncbroker/jobbroker/internal/broker/store"
	brokererrors "github.com/asyncbroker/jobbroker/internal/pkg/errors"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

// Delegate is the external handler a Server dispatches decoded jobs to.
// A normal return completes the job; an error (or a cancelled ctx) retries it.
// The delegate is responsible for being idempotent — delivery is at-least-once.
type Delegate interface {
	Call(ctx context.Context, job any) error
}

// Scheduler is the cooperative parent the dispatcher runs under. It
// bounds concurrent in-flight handlers and lets Stop join them.
// *idler.Idler is the default implementation.
//
// The dispatcher acquires a slot before fetching, so it only pulls a new
// job off the ready queue once it is ready to spawn a handler for it.
type Scheduler interface {
	Acquire(ctx context.Context) error
	Release()
	Wait()
}

type Server struct {
	log      *logger.Logger
	delegate Delegate
	codec    codec.Codec
	driver   store.Driver
	ns       keys.Namespace
	cfg      Config

	workerID   string
	jobs       *jobstore.Store
	ready      *readyqueue.Queue
	delayed    *delayedset.Set
	processing *processing.List
	scheduler  Scheduler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New mints a fresh worker id and wires the four components on top of
// prefix's key namespace. scheduler may be nil, in which case a
// default-paced idler.Idler is used.
func New(delegate Delegate, driver store.Driver, c codec.Codec, log *logger.Logger, cfg Config, scheduler Scheduler) *Server {
	ns := keys.New(cfg.Prefix)
	workerID := uuid.NewString()
	ready := readyqueue.New(driver, ns.Jobs(), ns.Ready())

	if scheduler == nil {
		scheduler = idler.New(cfg.Concurrency)
	}

	return &Server{
		log:        log.With("component", "server.Server", "worker_id", workerID),
		delegate:   delegate,
		codec:      c,
		driver:     driver,
		ns:         ns,
		cfg:        cfg,
		workerID:   workerID,
		jobs:       jobstore.New(driver, ns.Jobs()),
		ready:      ready,
		delayed:    delayedset.New(driver, ns.Jobs(), ns.Delayed(), log),
		processing: processing.New(driver, ready, c, ns, workerID, log),
		scheduler:  scheduler,
	}
}

// WorkerID returns this server's worker id (mostly useful for tests/logs).
func (s *Server) WorkerID() string { return s.workerID }

// Call submits a job: delayed if its value carries a scheduled_at, ready
// for immediate dispatch otherwise.
func (s *Server) Call(ctx context.Context, job any) (string, error) {
	scheduledAt, scheduled, err := s.codec.ScheduledAt(job)
	if err != nil {
		return "", fmt.Errorf("server: extract scheduled_at: %w", err)
	}

	payload, err := s.codec.Dump(job)
	if err != nil {
		return "", fmt.Errorf("server: encode job: %w", err)
	}

	if scheduled {
		return s.delayed.SubmitDelayed(ctx, payload, scheduledAt)
	}
	return s.ready.SubmitReady(ctx, payload)
}

// Start launches the delayed-sweeper, the heartbeat/recovery loop and the
// dispatcher. A second call while already running is a no-op.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.delayed.RunSweeper(runCtx, s.cfg.Resolution, s.ns.Ready()) }()
	go func() { defer s.wg.Done(); s.processing.RunHeartbeat(runCtx, s.cfg.Delay, s.cfg.Factor) }()
	go func() { defer s.wg.Done(); s.dispatch(runCtx) }()
}

// Stop cancels the dispatcher and background loops and joins every
// in-flight job handler. It does not attempt to drain pending jobs — the
// next-alive worker recovers them via the heartbeat/recovery loop. Stop
// returns ErrNotRunning if the server was never started (or has already
// been stopped) and is otherwise a no-op in that case.
func (s *Server) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return brokererrors.ErrNotRunning
	}
	cancel()
	s.wg.Wait()
	s.scheduler.Wait()
	return nil
}

// dispatch is the one perpetual dispatcher task per server.
func (s *Server) dispatch(ctx context.Context) {
	for {
		if err := s.scheduler.Acquire(ctx); err != nil {
			// Cancelled while waiting for a free handler slot; nothing
			// was fetched, so there is nothing to retry.
			return
		}

		id, err := s.processing.Fetch(ctx)
		if err != nil {
			s.scheduler.Release()
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("fetch failed", "error", err)
			continue
		}

		if ctx.Err() != nil {
			// Interrupted between fetch and spawning the child: the id
			// must not be leaked in the pending list.
			s.scheduler.Release()
			if retryErr := s.processing.Retry(context.Background(), id); retryErr != nil {
				s.log.Error("failed to retry fetched job on shutdown", "job_id", id, "error", retryErr)
			}
			return
		}

		go func(jobID string) {
			defer s.scheduler.Release()
			s.handle(ctx, jobID)
		}(id)
	}
}

// handle owns id from the moment it is spawned: it decodes the payload,
// invokes the delegate, and finalizes the job. A delegate error, a
// cancelled ctx, or a panic raised by the delegate are all logged and
// converted to a retry, never propagated — the panic recover is a safety
// net mirroring the teacher's runLoop (a misbehaving delegate must not
// take the whole worker process down with it).
//
// ctx is the server's run context: cancelling the server propagates into
// an in-flight delegate call so it can give up. Store calls that
// finalize the job (Get/Complete/Retry) use a background context so a
// job already fetched is still cleanly completed or retried even while
// the server is shutting down.
func (s *Server) handle(ctx context.Context, id string) {
	bg := context.Background()
	finalized := false

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job handler panicked", "job_id", id, "panic", r)
			if finalized {
				return
			}
			if retryErr := s.processing.Retry(bg, id); retryErr != nil {
				s.log.Error("failed to retry job after panic", "job_id", id, "error", retryErr)
			}
		}
	}()

	payload, ok, err := s.jobs.Get(bg, id)
	if err != nil {
		s.log.Error("failed to read job payload", "job_id", id, "error", err)
		if retryErr := s.processing.Retry(bg, id); retryErr != nil {
			s.log.Error("failed to retry job after read error", "job_id", id, "error", retryErr)
		}
		finalized = true
		return
	}
	if !ok {
		// Payload lost while the id was still pending. Drop it instead of
		// retrying forever on a job that can never be read again —
		// Complete just removes it from the pending list, since there is
		// no payload left to delete.
		s.log.Error("job payload missing, dropping job", "job_id", id, "error", brokererrors.ErrPayloadMissing)
		if err := s.processing.Complete(bg, id); err != nil {
			s.log.Error("failed to clear dangling pending entry", "job_id", id, "error", err)
		}
		finalized = true
		return
	}

	job, err := s.codec.Load(payload)
	if err != nil {
		s.log.Error("failed to decode job payload", "job_id", id, "error", err)
		if retryErr := s.processing.Retry(bg, id); retryErr != nil {
			s.log.Error("failed to retry job after decode error", "job_id", id, "error", retryErr)
		}
		finalized = true
		return
	}

	if err := s.delegate.Call(ctx, job); err != nil {
		s.log.Error("job handler failed", "job_id", id, "error", err)
		if retryErr := s.processing.Retry(bg, id); retryErr != nil {
			s.log.Error("failed to retry job after handler error", "job_id", id, "error", retryErr)
		}
		finalized = true
		return
	}

	if err := s.processing.Complete(bg, id); err != nil {
		s.log.Error("failed to complete job", "job_id", id, "error", err)
	}
	finalized = true
}

// StatusString reports the current sizes of the ready queue, the delayed
// set and this worker's pending list, plus its cumulative completion
// count, for operator inspection. It never fails: a sizing error renders
// as 0 rather than propagating.
func (s *Server) StatusString(ctx context.Context) string {
	ready, _ := s.ready.Len(ctx)
	delayed, _ := s.delayed.Len(ctx)
	pending, _ := s.processing.Size(ctx)
	return fmt.Sprintf(
		"ready=%s delayed=%s pending=%s completed=%s",
		formatCount(ready), formatCount(delayed), formatCount(pending), formatCount(s.processing.CompleteCount()),
	)
}

func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
