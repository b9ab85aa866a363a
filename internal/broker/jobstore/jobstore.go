// Package jobstore implements the job payload index: a mapping from job
// id to opaque payload bytes, shared across all workers.
package jobstore

import (
	"context"

	"github.com/asyncbroker/jobbroker/internal/broker/store"
)

type Store struct {
	driver store.Driver
	key    string
}

func New(driver store.Driver, key string) *Store {
	return &Store{driver: driver, key: key}
}

// Put stores payload under id, overwriting on collision. Collisions are
// never expected in practice since ids are minted fresh per submission.
func (s *Store) Put(ctx context.Context, id string, payload []byte) error {
	return s.driver.Put(ctx, s.key, id, payload)
}

// Get returns the payload for id, or ok=false if it was never written or
// has already been deleted (e.g. the job completed).
func (s *Store) Get(ctx context.Context, id string) (payload []byte, ok bool, err error) {
	return s.driver.Get(ctx, s.key, id)
}

// Delete removes id's payload. Idempotent: deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.driver.Delete(ctx, s.key, id)
}
