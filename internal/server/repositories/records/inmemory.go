package records

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/wearsync/internal/server/models"
)

// InMemoryRepository is a mutex-guarded Repository used by handler tests.
type InMemoryRepository struct {
	mu   sync.Mutex
	rows map[string]map[string]models.Record // device id -> record id -> record
}

// NewInMemoryRepository returns an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string]map[string]models.Record)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, deviceID string, recs []models.Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.rows[deviceID]
	if !ok {
		byID = make(map[string]models.Record)
		r.rows[deviceID] = byID
	}
	for _, rec := range recs {
		rec.DeviceID = deviceID
		byID[rec.ID] = rec
	}
	return len(recs), nil
}

func (r *InMemoryRepository) SelectSince(ctx context.Context, deviceID string, since int64) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []models.Record
	for _, rec := range r.rows[deviceID] {
		if rec.Timestamp > since {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp < result[j].Timestamp })
	return result, nil
}
