// Package records provides the durable record store used by the sync engine:
// append-only ingestion, insertion-ordered pending queries, and idempotent
// mark-synced bookkeeping.
package records

import (
	"context"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
)

// Repository describes storage operations for health records.
// Implementations must be safe for concurrent callers and must serialize
// ingestion and mark-synced against each other, so a concurrent read never
// observes a half-written record set.
type Repository interface {
	// Ingest appends records to durable storage. A record whose id already
	// exists is overwritten (last-write-wins) but keeps its stored synced
	// flag. Storage I/O errors are returned, never swallowed.
	Ingest(ctx context.Context, recs []models.Record) error

	// Unsynced returns all records with synced == false, in insertion order.
	// Restartable: repeated calls reflect the latest state.
	Unsynced(ctx context.Context) ([]models.Record, error)

	// MarkSynced sets synced = true for every record whose id is in ids.
	// Unknown ids are silently ignored; calling twice with the same ids is
	// a no-op the second time.
	MarkSynced(ctx context.Context, ids []string) error

	// CountPending returns the number of records with synced == false.
	CountPending(ctx context.Context) (int, error)
}
