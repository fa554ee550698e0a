package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/wearsync/internal/dbx"
	"github.com/dmitrijs2005/wearsync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert replaces rows by (device_id, id). Re-submitting a batch after a
// lost acknowledgement therefore stays idempotent.
func (r *PostgresRepository) Upsert(ctx context.Context, deviceID string, recs []models.Record) (int, error) {
	query := `
		INSERT INTO records (device_id, id, timestamp, kind, payload, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (device_id, id)
		DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload,
			source = EXCLUDED.source;
	`
	for _, rec := range recs {
		if _, err := r.db.ExecContext(ctx, query,
			deviceID, rec.ID, rec.Timestamp, rec.Kind, []byte(rec.Payload), rec.Source); err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
	}
	return len(recs), nil
}

// SelectSince lists a device's records newer than the given checkpoint.
func (r *PostgresRepository) SelectSince(ctx context.Context, deviceID string, since int64) ([]models.Record, error) {
	query := `SELECT id, timestamp, kind, payload, source FROM records
		WHERE device_id = $1 AND timestamp > $2
		ORDER BY timestamp`
	rows, err := r.db.QueryContext(ctx, query, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		item := models.Record{DeviceID: deviceID}
		var payload []byte
		if err := rows.Scan(&item.ID, &item.Timestamp, &item.Kind, &payload, &item.Source); err != nil {
			return nil, err
		}
		item.Payload = payload
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
