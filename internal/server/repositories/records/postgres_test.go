package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/wearsync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO records .* ON CONFLICT \(device_id, id\) DO UPDATE SET .*`)

	mock.ExpectExec(q.String()).
		WithArgs("dev-1", "r1", int64(100), "STEPS", []byte(`{"steps":1200}`), "wearable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q.String()).
		WithArgs("dev-1", "r2", int64(200), "HEART_RATE", []byte(`{"bpm":61}`), "wearable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Upsert(context.Background(), "dev-1", []models.Record{
		{ID: "r1", Timestamp: 100, Kind: "STEPS", Payload: json.RawMessage(`{"steps":1200}`), Source: "wearable"},
		{ID: "r2", Timestamp: 200, Kind: "HEART_RATE", Payload: json.RawMessage(`{"bpm":61}`), Source: "wearable"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records written, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records .*`).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Upsert(context.Background(), "dev-1", []models.Record{
		{ID: "r1", Timestamp: 100, Kind: "STEPS", Payload: json.RawMessage(`{}`)},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSelectSince_ReturnsRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "timestamp", "kind", "payload", "source"}).
		AddRow("r1", int64(150), "STEPS", []byte(`{"steps":500}`), "wearable").
		AddRow("r2", int64(250), "HEART_RATE", []byte(`{"bpm":70}`), "wearable")

	mock.ExpectQuery(`SELECT id, timestamp, kind, payload, source FROM records .*`).
		WithArgs("dev-1", int64(100)).
		WillReturnRows(rows)

	got, err := repo.SelectSince(context.Background(), "dev-1", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("unexpected order: %v", got)
	}
	if got[0].DeviceID != "dev-1" {
		t.Fatalf("expected device id propagated, got %q", got[0].DeviceID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSelectSince_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, timestamp, kind, payload, source FROM records .*`).
		WillReturnError(errors.New("relation does not exist"))

	_, err := repo.SelectSince(context.Background(), "dev-1", 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
