// Package codec defines the serialization contract the broker depends on:
// encode/decode an opaque job value, and pull its scheduled_at timestamp
// (if any) before encoding. The broker never otherwise inspects a payload.
package codec

import "time"

// Codec is the broker's serialization boundary: it only ever calls
// Dump/Load/ScheduledAt, never reasons about the wire format itself.
type Codec interface {
	// Dump encodes a caller-supplied job value into an opaque payload.
	Dump(value any) ([]byte, error)
	// Load decodes a payload back into a job value for delegate dispatch.
	Load(payload []byte) (any, error)
	// ScheduledAt extracts a job's target timestamp, if it carries one.
	// ok is false for an immediate job.
	ScheduledAt(value any) (ts time.Time, ok bool, err error)
}
