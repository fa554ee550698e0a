// Package records provides server-side repositories for received health
// records.
package records

import (
	"context"

	"github.com/dmitrijs2005/wearsync/internal/server/models"
)

// Repository describes storage operations for received records.
type Repository interface {
	// Upsert stores all records for the device, replacing rows with the
	// same (device id, record id). Returns the number of records written.
	Upsert(ctx context.Context, deviceID string, recs []models.Record) (int, error)

	// SelectSince returns the device's records with timestamp > since,
	// ordered by timestamp.
	SelectSince(ctx context.Context, deviceID string, since int64) ([]models.Record, error)
}
