package codec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	brokererrors "github.com/asyncbroker/jobbroker/internal/pkg/errors"
)

func TestJSONDumpLoadRoundTrip(t *testing.T) {
	c := NewJSON()
	payload, err := c.Dump(map[string]any{"kind": "email", "to": "a@b.com"})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	v, err := c.Load(payload)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Load returned %T, want map[string]any", v)
	}
	if m["kind"] != "email" {
		t.Fatalf("kind = %v, want email", m["kind"])
	}
}

func TestJSONScheduledAtFromFloat(t *testing.T) {
	c := NewJSON()
	want := time.Unix(1700000000, 0).UTC()
	ts, ok, err := c.ScheduledAt(map[string]any{"scheduled_at": float64(1700000000)})
	if err != nil {
		t.Fatalf("ScheduledAt: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if !ts.Equal(want) {
		t.Fatalf("ts = %v, want %v", ts, want)
	}
}

func TestJSONScheduledAtFromRFC3339(t *testing.T) {
	c := NewJSON()
	ts, ok, err := c.ScheduledAt(map[string]any{"scheduled_at": "2026-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("ScheduledAt: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if ts.Year() != 2026 {
		t.Fatalf("ts = %v, want year 2026", ts)
	}
}

func TestJSONScheduledAtFromJSONNumber(t *testing.T) {
	c := NewJSON()
	var v any
	dec := json.NewDecoder(strings.NewReader(`{"scheduled_at": 1700000000}`))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, ok, err := c.ScheduledAt(v)
	if err != nil {
		t.Fatalf("ScheduledAt: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
}

func TestJSONScheduledAtAbsent(t *testing.T) {
	c := NewJSON()
	_, ok, err := c.ScheduledAt(map[string]any{"kind": "email"})
	if err != nil {
		t.Fatalf("ScheduledAt: %v", err)
	}
	if ok {
		t.Fatal("ok = true, want false for a job with no scheduled_at")
	}
}

func TestJSONScheduledAtInvalidString(t *testing.T) {
	c := NewJSON()
	_, _, err := c.ScheduledAt(map[string]any{"scheduled_at": "not-a-time"})
	if err == nil {
		t.Fatal("expected an error for an unparseable scheduled_at string")
	}
	if !errors.Is(err, brokererrors.ErrScheduledAtInvalid) {
		t.Fatalf("err = %v, want it to wrap ErrScheduledAtInvalid", err)
	}
}

type scheduledJob struct {
	at time.Time
}

func (j scheduledJob) ScheduledAt() (time.Time, bool) { return j.at, true }

func TestJSONScheduledAterOverride(t *testing.T) {
	c := NewJSON()
	want := time.Unix(1234, 0)
	ts, ok, err := c.ScheduledAt(scheduledJob{at: want})
	if err != nil {
		t.Fatalf("ScheduledAt: %v", err)
	}
	if !ok || !ts.Equal(want) {
		t.Fatalf("ts = %v ok = %v, want %v true", ts, ok, want)
	}
}
