// Package packet fragments an opaque byte payload into checksummed, indexed
// packets bounded by a maximum unit size, and reassembles and validates them.
// The wire shape is JSON-stable: {sequence, total, kind, payload, checksum},
// with payload base64-encoded by encoding/json and checksum the MD5 hex of
// the raw payload bytes.
package packet

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
)

// DefaultMaxUnitSize is the largest payload carried by one packet over the
// constrained fallback link.
const DefaultMaxUnitSize = 512

// Packet is one fragment of a serialized record batch.
type Packet struct {
	Sequence int    `json:"sequence"`
	Total    int    `json:"total"`
	Kind     string `json:"kind"`
	Payload  []byte `json:"payload"`
	Checksum string `json:"checksum"`
}

// ChecksumMismatchError reports a packet whose payload no longer matches its
// checksum. The transfer it belongs to must be retried from scratch.
type ChecksumMismatchError struct {
	Sequence int
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch in packet %d", e.Sequence)
}

// IncompleteSequenceError reports sequence indexes missing from 0..total-1.
type IncompleteSequenceError struct {
	Missing []int
}

func (e *IncompleteSequenceError) Error() string {
	return fmt.Sprintf("incomplete packet sequence, missing %v", e.Missing)
}

// InconsistentTotalError reports packets that disagree on the batch total.
type InconsistentTotalError struct {
	Want, Got int
}

func (e *InconsistentTotalError) Error() string {
	return fmt.Sprintf("inconsistent packet total: %d vs %d", e.Want, e.Got)
}

func checksum(payload []byte) string {
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// Encode splits data into packets of at most maxUnit bytes each.
// It is deterministic: the same input always yields the same sequence.
// Empty input yields a single empty packet so total >= 1 always holds.
func Encode(data []byte, kind string, maxUnit int) ([]Packet, error) {
	if maxUnit <= 0 {
		return nil, fmt.Errorf("invalid max unit size: %d", maxUnit)
	}

	total := (len(data) + maxUnit - 1) / maxUnit
	if total == 0 {
		total = 1
	}

	packets := make([]Packet, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxUnit
		end := start + maxUnit
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		packets = append(packets, Packet{
			Sequence: i,
			Total:    total,
			Kind:     kind,
			Payload:  chunk,
			Checksum: checksum(chunk),
		})
	}
	return packets, nil
}

// Decode validates and reassembles a packet sequence back into the original
// bytes. Packets may arrive in any order. It fails with
// *InconsistentTotalError when packets disagree on total, with
// *IncompleteSequenceError when indexes are missing or duplicated, and with
// *ChecksumMismatchError naming the first corrupted sequence. On any failure
// no partial result is returned.
func Decode(packets []Packet) ([]byte, error) {
	if len(packets) == 0 {
		return nil, fmt.Errorf("no packets to decode")
	}

	total := packets[0].Total
	for _, p := range packets[1:] {
		if p.Total != total {
			return nil, &InconsistentTotalError{Want: total, Got: p.Total}
		}
	}
	if total < 1 {
		return nil, fmt.Errorf("invalid packet total: %d", total)
	}

	sorted := make([]Packet, len(packets))
	copy(sorted, packets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	seen := make(map[int]bool, total)
	for _, p := range sorted {
		if p.Sequence < 0 || p.Sequence >= total || seen[p.Sequence] {
			return nil, missingError(seen, total)
		}
		seen[p.Sequence] = true
	}
	if len(seen) != total {
		return nil, missingError(seen, total)
	}

	var size int
	for _, p := range sorted {
		size += len(p.Payload)
	}

	out := make([]byte, 0, size)
	for _, p := range sorted {
		if checksum(p.Payload) != p.Checksum {
			return nil, &ChecksumMismatchError{Sequence: p.Sequence}
		}
		out = append(out, p.Payload...)
	}
	return out, nil
}

func missingError(seen map[int]bool, total int) error {
	var missing []int
	for i := 0; i < total; i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return &IncompleteSequenceError{Missing: missing}
}
