// Package store defines the key-value store contract the broker depends
// on and a go-redis/v9-backed implementation of it. Every operation
// documented as atomic is backed by a single Lua script so concurrent
// workers observe a consistent view.
package store

import (
	"context"
	"time"
)

// Driver is the subset of store commands the broker assumes: hash field
// set/get/delete, list push/blocking-pop-into-push, list-element-remove-
// by-value, sorted-set add/range/remove-range, key set/get with TTL, and
// cursored glob scanning. It is satisfied by the real Redis-backed
// Client and by the in-memory fake in ./storetest, which lets the
// broker's ordering/atomicity properties be tested without a live server.
type Driver interface {
	// SubmitReady atomically writes (id -> payload) to the jobs hash and
	// appends id to the newest end of the ready list.
	SubmitReady(ctx context.Context, jobsKey, readyKey, id string, payload []byte) error

	// SubmitDelayed atomically writes (id -> payload) to the jobs hash
	// and inserts (id, targetTS) into the delayed sorted set.
	SubmitDelayed(ctx context.Context, jobsKey, delayedKey, id string, payload []byte, targetTS float64) error

	// PromoteDue atomically moves every id scored <= now from the delayed
	// set to the newest end of readyKey, preserving ascending score order,
	// and returns how many were moved.
	PromoteDue(ctx context.Context, delayedKey, readyKey string, now float64) (int64, error)

	// PushFront appends id to the newest end of readyKey (retry/recovery path).
	PushFront(ctx context.Context, readyKey, id string) error

	// BlockingFetch waits for an id to move from the oldest end of
	// readyKey to the newest end of pendingKey. pollTimeout bounds a
	// single blocking store call; the Redis-backed Client repeats that
	// call, rechecking ctx between calls, and the in-memory fake waits
	// until an id arrives or ctx is done. Both therefore return either an
	// id with ok true or ctx's error, which is how the blocking fetch is
	// made interruptible (spec §9 design note). A result with ok false and
	// a nil error means no id was moved; callers loop on it.
	BlockingFetch(ctx context.Context, readyKey, pendingKey string, pollTimeout time.Duration) (id string, ok bool, err error)

	// Complete atomically removes one occurrence of id from pendingKey
	// and deletes id from the jobs hash.
	Complete(ctx context.Context, pendingKey, jobsKey, id string) error

	// Retry atomically removes one occurrence of id from pendingKey and
	// appends it to the newest end of readyKey.
	Retry(ctx context.Context, pendingKey, readyKey, id string) error

	// Get looks up a payload by id; ok is false if absent.
	Get(ctx context.Context, jobsKey, id string) (payload []byte, ok bool, err error)
	// Put writes a payload, overwriting on collision.
	Put(ctx context.Context, jobsKey, id string, payload []byte) error
	// Delete removes a payload; a no-op if already absent.
	Delete(ctx context.Context, jobsKey, id string) error

	// SetLiveness writes a worker's liveness value with the given TTL.
	SetLiveness(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// LivenessExists reports whether a worker's liveness key is present.
	LivenessExists(ctx context.Context, key string) (bool, error)

	// DrainPendingList atomically moves every entry of pendingKey to the
	// newest end of readyKey, one at a time, then deletes pendingKey.
	// Each individual move is atomic; the whole drain need not be.
	DrainPendingList(ctx context.Context, pendingKey, readyKey string) (int64, error)
	// ScanPendingKeys cursors through keys matching pattern, invoking fn
	// once per match. Must not block the store on large namespaces.
	ScanPendingKeys(ctx context.Context, pattern string, fn func(pendingKey string) error) error

	// ListLen and SortedSetLen back status_string's size reporting.
	ListLen(ctx context.Context, key string) (int64, error)
	SortedSetLen(ctx context.Context, key string) (int64, error)
}
