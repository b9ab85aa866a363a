// Package delayedset implements the time-keyed pending scheduler: jobs
// wait here until their target wall-clock time arrives, then are
// atomically promoted into the ready queue by a sweeper loop.
package delayedset

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/asyncbroker/jobbroker/internal/broker/store"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

type Set struct {
	driver     store.Driver
	jobsKey    string
	delayedKey string
	log        *logger.Logger
}

func New(driver store.Driver, jobsKey, delayedKey string, log *logger.Logger) *Set {
	return &Set{driver: driver, jobsKey: jobsKey, delayedKey: delayedKey, log: log.With("component", "delayedset.Set")}
}

// SubmitDelayed mints a fresh job id and atomically writes (id -> payload)
// to the job store and (id, targetTS) into the delayed set.
func (s *Set) SubmitDelayed(ctx context.Context, payload []byte, targetTS time.Time) (string, error) {
	id := uuid.NewString()
	score := float64(targetTS.UnixNano()) / float64(time.Second)
	if err := s.driver.SubmitDelayed(ctx, s.jobsKey, s.delayedKey, id, payload, score); err != nil {
		return "", err
	}
	return id, nil
}

// PromoteDue atomically moves every id whose target timestamp has passed
// into destQueueKey's newest end, in ascending target_ts order, and
// returns how many were promoted.
func (s *Set) PromoteDue(ctx context.Context, destQueueKey string, now time.Time) (int, error) {
	score := float64(now.UnixNano()) / float64(time.Second)
	n, err := s.driver.PromoteDue(ctx, s.delayedKey, destQueueKey, score)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Len reports the current set size, for status reporting.
func (s *Set) Len(ctx context.Context) (int64, error) {
	return s.driver.SortedSetLen(ctx, s.delayedKey)
}

// RunSweeper runs perpetually until ctx is cancelled, promoting matured
// jobs into destQueueKey every resolution period and logging at Debug
// whenever it moves at least one.
func (s *Set) RunSweeper(ctx context.Context, resolution time.Duration, destQueueKey string) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PromoteDue(ctx, destQueueKey, time.Now())
			if err != nil {
				s.log.Warn("promote_due failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Debug("promoted delayed jobs", "count", n)
			}
		}
	}
}
