package storetest

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFakeSubmitReadyThenBlockingFetch(t *testing.T) {
	f := New()
	ctx := context.Background()

	if err := f.SubmitReady(ctx, "jobs", "ready", "id-1", []byte("payload")); err != nil {
		t.Fatalf("SubmitReady: %v", err)
	}

	id, ok, err := f.BlockingFetch(ctx, "ready", "pending", time.Second)
	if err != nil || !ok {
		t.Fatalf("BlockingFetch: id=%q ok=%v err=%v", id, ok, err)
	}
	if id != "id-1" {
		t.Fatalf("id = %q, want id-1", id)
	}

	n, err := f.ListLen(ctx, "pending")
	if err != nil || n != 1 {
		t.Fatalf("ListLen(pending) = %d, err=%v, want 1", n, err)
	}
}

func TestFakeBlockingFetchUnblocksOnSubmit(t *testing.T) {
	f := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotID string
	go func() {
		defer wg.Done()
		id, ok, err := f.BlockingFetch(ctx, "ready", "pending", time.Second)
		if err == nil && ok {
			gotID = id
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if err := f.SubmitReady(ctx, "jobs", "ready", "id-2", []byte("x")); err != nil {
		t.Fatalf("SubmitReady: %v", err)
	}
	wg.Wait()

	if gotID != "id-2" {
		t.Fatalf("gotID = %q, want id-2", gotID)
	}
}

func TestFakeBlockingFetchRespectsCancellation(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := f.BlockingFetch(ctx, "ready", "pending", time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("BlockingFetch did not return after ctx cancellation")
	}
}

func TestFakeCompleteIsIdempotent(t *testing.T) {
	f := New()
	ctx := context.Background()
	_ = f.Put(ctx, "jobs", "id-1", []byte("x"))
	_ = f.PushFront(ctx, "pending", "id-1")

	if err := f.Complete(ctx, "pending", "jobs", "id-1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.Complete(ctx, "pending", "jobs", "id-1"); err != nil {
		t.Fatalf("second Complete: %v", err)
	}

	if _, ok, _ := f.Get(ctx, "jobs", "id-1"); ok {
		t.Fatal("payload still present after Complete")
	}
}

func TestFakePromoteDuePreservesScoreOrder(t *testing.T) {
	f := New()
	ctx := context.Background()

	_ = f.SubmitDelayed(ctx, "jobs", "delayed", "late", []byte("x"), 200)
	_ = f.SubmitDelayed(ctx, "jobs", "delayed", "early", []byte("x"), 100)

	n, err := f.PromoteDue(ctx, "delayed", "ready", 1000)
	if err != nil || n != 2 {
		t.Fatalf("PromoteDue: n=%d err=%v", n, err)
	}

	first, _, _ := f.BlockingFetch(ctx, "ready", "pending", time.Second)
	second, _, _ := f.BlockingFetch(ctx, "ready", "pending", time.Second)
	if first != "early" || second != "late" {
		t.Fatalf("fetch order = %q, %q, want early, late", first, second)
	}
}

func TestFakeLivenessExpires(t *testing.T) {
	f := New()
	ctx := context.Background()

	if err := f.SetLiveness(ctx, "hb", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetLiveness: %v", err)
	}
	alive, err := f.LivenessExists(ctx, "hb")
	if err != nil || !alive {
		t.Fatalf("LivenessExists right after set = %v, err=%v, want true", alive, err)
	}

	time.Sleep(30 * time.Millisecond)
	alive, err = f.LivenessExists(ctx, "hb")
	if err != nil || alive {
		t.Fatalf("LivenessExists after TTL = %v, err=%v, want false", alive, err)
	}
}

func TestFakeDrainPendingListMovesEverythingToReady(t *testing.T) {
	f := New()
	ctx := context.Background()

	_ = f.PushFront(ctx, "worker-a:pending", "id-1")
	_ = f.PushFront(ctx, "worker-a:pending", "id-2")

	n, err := f.DrainPendingList(ctx, "worker-a:pending", "ready")
	if err != nil || n != 2 {
		t.Fatalf("DrainPendingList: n=%d err=%v", n, err)
	}

	readyLen, _ := f.ListLen(ctx, "ready")
	if readyLen != 2 {
		t.Fatalf("ready len = %d, want 2", readyLen)
	}
	pendingLen, _ := f.ListLen(ctx, "worker-a:pending")
	if pendingLen != 0 {
		t.Fatalf("pending len = %d, want 0 after drain", pendingLen)
	}
}

func TestFakeScanPendingKeysMatchesGlob(t *testing.T) {
	f := New()
	ctx := context.Background()
	_ = f.PushFront(ctx, "ns:processing:worker-a:pending", "id-1")
	_ = f.PushFront(ctx, "ns:processing:worker-b:pending", "id-2")
	_ = f.PushFront(ctx, "ns:ready", "id-3")

	var matched []string
	err := f.ScanPendingKeys(ctx, "ns:processing:*:pending", func(k string) error {
		matched = append(matched, k)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanPendingKeys: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("matched %v, want 2 keys", matched)
	}
}
