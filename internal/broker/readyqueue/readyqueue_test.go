package readyqueue

import (
	"context"
	"testing"
	"time"

	"github.com/asyncbroker/jobbroker/internal/broker/storetest"
)

func TestSubmitReadyThenBlockingFetchInto(t *testing.T) {
	ctx := context.Background()
	q := New(storetest.New(), "jobs", "ready")

	id, err := q.SubmitReady(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("SubmitReady: %v", err)
	}
	if id == "" {
		t.Fatal("SubmitReady returned an empty id")
	}

	fetched, err := q.BlockingFetchInto(ctx, "worker-1:pending")
	if err != nil {
		t.Fatalf("BlockingFetchInto: %v", err)
	}
	if fetched != id {
		t.Fatalf("fetched %q, want %q", fetched, id)
	}
}

func TestBlockingFetchIntoBlocksUntilCancelled(t *testing.T) {
	q := New(storetest.New(), "jobs", "ready")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.BlockingFetchInto(ctx, "worker-1:pending")
	if err == nil {
		t.Fatal("expected an error when the ready queue stays empty past the deadline")
	}
}

func TestPushFrontThenLen(t *testing.T) {
	ctx := context.Background()
	q := New(storetest.New(), "jobs", "ready")

	if err := q.PushFront(ctx, "id-retry"); err != nil {
		t.Fatalf("PushFront: %v", err)
	}
	n, err := q.Len(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Len = %d err=%v, want 1", n, err)
	}
}
