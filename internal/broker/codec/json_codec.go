package codec

import (
	"encoding/json"
	"fmt"
	"time"

	brokererrors "github.com/asyncbroker/jobbroker/internal/pkg/errors"
)

const scheduledAtField = "scheduled_at"

// ScheduledAter lets a typed job value opt out of the default
// "scheduled_at map key" convention by reporting its own schedule.
type ScheduledAter interface {
	ScheduledAt() (time.Time, bool)
}

// JSON is the default codec: job values are JSON-marshaled as-is, and
// scheduled_at is read either from a ScheduledAter implementation or from
// a top-level "scheduled_at" field holding a Unix timestamp in seconds
// (fractional) or an RFC3339 string.
type JSON struct{}

func NewJSON() JSON { return JSON{} }

func (JSON) Dump(value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal job value: %w", err)
	}
	return payload, nil
}

func (JSON) Load(payload []byte) (any, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("codec: unmarshal payload: %w", err)
	}
	return v, nil
}

func (JSON) ScheduledAt(value any) (time.Time, bool, error) {
	if sa, ok := value.(ScheduledAter); ok {
		ts, present := sa.ScheduledAt()
		return ts, present, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return time.Time{}, false, nil
	}
	raw, present := m[scheduledAtField]
	if !present || raw == nil {
		return time.Time{}, false, nil
	}

	switch v := raw.(type) {
	case float64:
		return unixSeconds(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("codec: parse scheduled_at number: %w: %w", brokererrors.ErrScheduledAtInvalid, err)
		}
		return unixSeconds(f), true, nil
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true, nil
		}
		return time.Time{}, false, fmt.Errorf("codec: scheduled_at %q is not RFC3339: %w", v, brokererrors.ErrScheduledAtInvalid)
	default:
		return time.Time{}, false, fmt.Errorf("codec: scheduled_at has unsupported type %T: %w", raw, brokererrors.ErrScheduledAtInvalid)
	}
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
