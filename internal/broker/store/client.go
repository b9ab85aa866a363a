package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	brokererrors "github.com/asyncbroker/jobbroker/internal/pkg/errors"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

// Client is the Driver implementation backed by go-redis/v9. It holds no
// per-namespace state beyond the connection itself; every method is
// parameterized by the keys its caller derives (see §9 design note:
// components hold a reference to the shared store client plus their own
// key, never the other way around).
type Client struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewClient wraps an already-configured *redis.Client. Dialing and
// connection-pool options are the caller's concern (see cmd/worker).
func NewClient(rdb *goredis.Client, log *logger.Logger) *Client {
	return &Client{rdb: rdb, log: log.With("component", "store.Client")}
}

// Ping verifies connectivity at startup.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) SubmitReady(ctx context.Context, jobsKey, readyKey, id string, payload []byte) error {
	if err := scriptSubmitReady.Run(ctx, c.rdb, []string{jobsKey, readyKey}, id, payload).Err(); err != nil {
		return wrapScript("submit_ready", err)
	}
	return nil
}

func (c *Client) SubmitDelayed(ctx context.Context, jobsKey, delayedKey, id string, payload []byte, targetTS float64) error {
	if err := scriptSubmitDelayed.Run(ctx, c.rdb, []string{jobsKey, delayedKey}, id, payload, targetTS).Err(); err != nil {
		return wrapScript("submit_delayed", err)
	}
	return nil
}

func (c *Client) PromoteDue(ctx context.Context, delayedKey, readyKey string, now float64) (int64, error) {
	n, err := scriptPromoteDue.Run(ctx, c.rdb, []string{delayedKey, readyKey}, now).Int64()
	if err != nil {
		return 0, wrapScriptCode("promote_due", scriptReturnCode(err), err)
	}
	return n, nil
}

func (c *Client) PushFront(ctx context.Context, readyKey, id string) error {
	return c.rdb.LPush(ctx, readyKey, id).Err()
}

func (c *Client) BlockingFetch(ctx context.Context, readyKey, pendingKey string, pollTimeout time.Duration) (string, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		id, err := c.rdb.BLMove(ctx, readyKey, pendingKey, "right", "left", pollTimeout).Result()
		switch {
		case err == nil:
			return id, true, nil
		case errors.Is(err, goredis.Nil):
			// plain poll timeout, no job yet; loop and recheck ctx
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "", false, ctx.Err()
		default:
			return "", false, err
		}
	}
}

func (c *Client) Complete(ctx context.Context, pendingKey, jobsKey, id string) error {
	if err := scriptComplete.Run(ctx, c.rdb, []string{pendingKey, jobsKey}, id).Err(); err != nil {
		return wrapScript("complete", err)
	}
	return nil
}

func (c *Client) Retry(ctx context.Context, pendingKey, readyKey, id string) error {
	if err := scriptRetry.Run(ctx, c.rdb, []string{pendingKey, readyKey}, id).Err(); err != nil {
		return wrapScript("retry", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, jobsKey, id string) ([]byte, bool, error) {
	val, err := c.rdb.HGet(ctx, jobsKey, id).Bytes()
	switch {
	case err == nil:
		return val, true, nil
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (c *Client) Put(ctx context.Context, jobsKey, id string, payload []byte) error {
	return c.rdb.HSet(ctx, jobsKey, id, payload).Err()
}

func (c *Client) Delete(ctx context.Context, jobsKey, id string) error {
	return c.rdb.HDel(ctx, jobsKey, id).Err()
}

func (c *Client) SetLiveness(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

func (c *Client) LivenessExists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) DrainPendingList(ctx context.Context, pendingKey, readyKey string) (int64, error) {
	n, err := scriptDrainPendingList.Run(ctx, c.rdb, []string{pendingKey, readyKey}).Int64()
	if err != nil {
		return 0, wrapScriptCode("drain_pending_list", scriptReturnCode(err), err)
	}
	return n, nil
}

func (c *Client) ScanPendingKeys(ctx context.Context, pattern string, fn func(pendingKey string) error) error {
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *Client) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Client) SortedSetLen(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func wrapScript(name string, err error) error {
	return wrapScriptCode(name, brokererrors.ScriptErrorExec, err)
}

func wrapScriptCode(name string, code brokererrors.ScriptErrorCode, err error) error {
	return fmt.Errorf("store: script %s: %w", name, &brokererrors.ScriptError{
		Code:   code,
		Script: name,
		Cause:  err,
	})
}

// scriptReturnCode classifies a script failure so an operator can tell a
// transient exec error (connection, Lua runtime error) from a reply that
// decoded to the wrong shape (e.g. Int64() failing to parse the result).
func scriptReturnCode(err error) brokererrors.ScriptErrorCode {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return brokererrors.ScriptErrorBadReturn
	}
	return brokererrors.ScriptErrorExec
}

var _ Driver = (*Client)(nil)
