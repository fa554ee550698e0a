// Package models defines the data shapes moved by the sync engine.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RecordKind classifies a health record. The payload schema varies by kind
// and is opaque to the engine: it is serialized, never interpreted.
type RecordKind string

const (
	KindDailyMetrics RecordKind = "DAILY_METRICS"
	KindSleepSession RecordKind = "SLEEP_SESSION"
	KindHeartRate    RecordKind = "HEART_RATE"
	KindSteps        RecordKind = "STEPS"
	KindWorkout      RecordKind = "WORKOUT"
)

// DefaultSource labels records whose origin is not set explicitly.
const DefaultSource = "wearable"

// Record is one observation or aggregate to transmit.
//
// ID is globally unique and immutable once created. Timestamp is
// caller-supplied milliseconds since epoch. Synced starts false and flips
// to true exactly once, only after a transport confirms delivery.
type Record struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Kind      RecordKind     `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
	Synced    bool           `json:"synced"`
}

// NewRecord builds a record with a generated id and the default source.
func NewRecord(timestamp int64, kind RecordKind, payload map[string]any) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: timestamp,
		Kind:      kind,
		Payload:   payload,
		Source:    DefaultSource,
	}
}

// MarshalPayload renders the payload as stable JSON bytes for storage.
func (r *Record) MarshalPayload() ([]byte, error) {
	if r.Payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Payload)
}

// UnmarshalPayload restores the payload from stored JSON bytes.
func (r *Record) UnmarshalPayload(data []byte) error {
	if len(data) == 0 {
		r.Payload = nil
		return nil
	}
	return json.Unmarshal(data, &r.Payload)
}
