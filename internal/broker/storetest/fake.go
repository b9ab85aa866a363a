// Package storetest provides an in-memory Driver used to exercise the
// broker's ordering and atomicity properties without a live Redis server.
package storetest

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/asyncbroker/jobbroker/internal/broker/store"
)

type scored struct {
	id    string
	score float64
}

type liveness struct {
	payload []byte
	expiry  time.Time
}

// Fake is a single-process, mutex-guarded Driver. All mutating methods
// take the lock for their whole critical section, which is how it
// reproduces the one-atomic-script guarantees a real Redis deployment
// provides via Lua scripting.
type Fake struct {
	mu       sync.Mutex
	hashes   map[string]map[string][]byte // jobsKey -> id -> payload
	lists    map[string][]string          // key -> ids, index 0 = newest (left) end
	zsets    map[string][]scored          // key -> members
	liveness map[string]liveness
	cond     *sync.Cond
}

func New() *Fake {
	f := &Fake{
		hashes:   make(map[string]map[string][]byte),
		lists:    make(map[string][]string),
		zsets:    make(map[string][]scored),
		liveness: make(map[string]liveness),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) hash(key string) map[string][]byte {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		f.hashes[key] = h
	}
	return h
}

func (f *Fake) pushFront(key, id string) {
	f.lists[key] = append([]string{id}, f.lists[key]...)
}

func (f *Fake) SubmitReady(_ context.Context, jobsKey, readyKey, id string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash(jobsKey)[id] = payload
	f.pushFront(readyKey, id)
	f.cond.Broadcast()
	return nil
}

func (f *Fake) SubmitDelayed(_ context.Context, jobsKey, delayedKey, id string, payload []byte, targetTS float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash(jobsKey)[id] = payload
	f.zsets[delayedKey] = append(f.zsets[delayedKey], scored{id: id, score: targetTS})
	return nil
}

func (f *Fake) PromoteDue(_ context.Context, delayedKey, readyKey string, now float64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := f.zsets[delayedKey]
	due := make([]scored, 0, len(members))
	rest := make([]scored, 0, len(members))
	for _, m := range members {
		if m.score <= now {
			due = append(due, m)
		} else {
			rest = append(rest, m)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].score < due[j].score })
	f.zsets[delayedKey] = rest

	for _, m := range due {
		f.pushFront(readyKey, m.id)
	}
	f.cond.Broadcast()
	return int64(len(due)), nil
}

func (f *Fake) PushFront(_ context.Context, readyKey, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushFront(readyKey, id)
	f.cond.Broadcast()
	return nil
}

// BlockingFetch waits (respecting ctx) until readyKey has an entry, pops
// its oldest (rightmost) id and pushes it to pendingKey's newest (left) end.
func (f *Fake) BlockingFetch(ctx context.Context, readyKey, pendingKey string, pollTimeout time.Duration) (string, bool, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		case <-done:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.lists[readyKey]) == 0 {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		f.cond.Wait()
	}
	lst := f.lists[readyKey]
	id := lst[len(lst)-1]
	f.lists[readyKey] = lst[:len(lst)-1]
	f.pushFront(pendingKey, id)
	return id, true, nil
}

func (f *Fake) Complete(_ context.Context, pendingKey, jobsKey, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeOne(pendingKey, id)
	delete(f.hash(jobsKey), id)
	return nil
}

func (f *Fake) Retry(_ context.Context, pendingKey, readyKey, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeOne(pendingKey, id)
	f.pushFront(readyKey, id)
	f.cond.Broadcast()
	return nil
}

func (f *Fake) removeOne(key, id string) {
	lst := f.lists[key]
	for i, v := range lst {
		if v == id {
			f.lists[key] = append(lst[:i:i], lst[i+1:]...)
			return
		}
	}
}

func (f *Fake) Get(_ context.Context, jobsKey, id string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.hash(jobsKey)[id]
	return v, ok, nil
}

func (f *Fake) Put(_ context.Context, jobsKey, id string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash(jobsKey)[id] = payload
	return nil
}

func (f *Fake) Delete(_ context.Context, jobsKey, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hash(jobsKey), id)
	return nil
}

func (f *Fake) SetLiveness(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveness[key] = liveness{payload: payload, expiry: timeNow().Add(ttl)}
	return nil
}

func (f *Fake) LivenessExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.liveness[key]
	if !ok {
		return false, nil
	}
	if timeNow().After(l.expiry) {
		delete(f.liveness, key)
		return false, nil
	}
	return true, nil
}

func (f *Fake) DrainPendingList(_ context.Context, pendingKey, readyKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lst := f.lists[pendingKey]
	var n int64
	for len(lst) > 0 {
		id := lst[len(lst)-1]
		lst = lst[:len(lst)-1]
		f.pushFront(readyKey, id)
		n++
	}
	delete(f.lists, pendingKey)
	if n > 0 {
		f.cond.Broadcast()
	}
	return n, nil
}

func (f *Fake) ScanPendingKeys(_ context.Context, pattern string, fn func(pendingKey string) error) error {
	f.mu.Lock()
	keys := make([]string, 0, len(f.lists))
	for k := range f.lists {
		if ok, _ := filepath.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) ListLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *Fake) SortedSetLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.zsets[key])), nil
}

func timeNow() time.Time { return time.Now() }

var _ store.Driver = (*Fake)(nil)
