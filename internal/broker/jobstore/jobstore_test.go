package jobstore

import (
	"context"
	"testing"

	"github.com/asyncbroker/jobbroker/internal/broker/storetest"
)

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.New(), "jobs")

	if err := s.Put(ctx, "id-1", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	payload, ok, err := s.Get(ctx, "id-1")
	if err != nil || !ok || string(payload) != "payload" {
		t.Fatalf("Get = %q ok=%v err=%v, want payload/true", payload, ok, err)
	}

	if err := s.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "id-1"); ok {
		t.Fatal("Get found payload after Delete")
	}
}

func TestStoreDeleteAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.New(), "jobs")
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete of absent id returned an error: %v", err)
	}
}
