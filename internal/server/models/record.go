// Package models defines server-side storage shapes.
package models

import "encoding/json"

// Record is one stored health record, keyed by (device id, record id).
// The payload is kept verbatim: the server relays, it does not interpret.
type Record struct {
	ID        string          `json:"id"`
	DeviceID  string          `json:"-"`
	Timestamp int64           `json:"timestamp"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
}
