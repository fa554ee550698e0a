package records

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
	"github.com/dmitrijs2005/wearsync/internal/dbx"
)

// SQLiteRepository implements Repository over a SQLite database. Insertion
// order is preserved via the implicit rowid, so Unsynced returns records in
// the order they were first ingested.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository bound to the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Ingest upserts all records in one transaction. On id conflict the data
// columns are replaced but the stored synced flag is kept, so re-ingesting
// an already delivered record does not resurrect it as pending.
func (r *SQLiteRepository) Ingest(ctx context.Context, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO records (id, timestamp, kind, payload, source, synced)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp,
				kind = excluded.kind,
				payload = excluded.payload,
				source = excluded.source
		`
		for i := range recs {
			rec := &recs[i]
			payload, err := rec.MarshalPayload()
			if err != nil {
				return fmt.Errorf("failed to serialize payload for %s: %w", rec.ID, err)
			}
			source := rec.Source
			if source == "" {
				source = models.DefaultSource
			}
			if _, err := tx.ExecContext(ctx, query,
				rec.ID, rec.Timestamp, string(rec.Kind), payload, source, rec.Synced); err != nil {
				return fmt.Errorf("failed to upsert record: %w", err)
			}
		}
		return nil
	})
}

// Unsynced lists pending records in first-insertion order.
func (r *SQLiteRepository) Unsynced(ctx context.Context) ([]models.Record, error) {
	query := `SELECT id, timestamp, kind, payload, source, synced FROM records
		WHERE synced = 0 ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var item models.Record
		var kind string
		var payload []byte
		if err := rows.Scan(&item.ID, &item.Timestamp, &kind, &payload, &item.Source, &item.Synced); err != nil {
			return nil, err
		}
		item.Kind = models.RecordKind(kind)
		if err := item.UnmarshalPayload(payload); err != nil {
			return nil, fmt.Errorf("failed to restore payload for %s: %w", item.ID, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced flips the synced flag for the given ids in one statement.
// Ids that were never ingested are ignored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`UPDATE records SET synced = 1 WHERE id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark records synced: %w", err)
	}
	return nil
}

// CountPending returns the number of records awaiting delivery.
func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE synced = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return n, nil
}
