package records

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs engine
// tests and can serve as a volatile store for short-lived agents.
type MemoryRepository struct {
	mu    sync.Mutex
	order []string
	byID  map[string]models.Record
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]models.Record)}
}

func (r *MemoryRepository) Ingest(ctx context.Context, recs []models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range recs {
		if rec.Source == "" {
			rec.Source = models.DefaultSource
		}
		if existing, ok := r.byID[rec.ID]; ok {
			// last-write-wins on data, stored synced flag is kept
			rec.Synced = existing.Synced
		} else {
			r.order = append(r.order, rec.ID)
		}
		r.byID[rec.ID] = rec
	}
	return nil
}

func (r *MemoryRepository) Unsynced(ctx context.Context) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []models.Record
	for _, id := range r.order {
		if rec := r.byID[id]; !rec.Synced {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (r *MemoryRepository) MarkSynced(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if rec, ok := r.byID[id]; ok {
			rec.Synced = true
			r.byID[id] = rec
		}
	}
	return nil
}

func (r *MemoryRepository) CountPending(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.byID {
		if !rec.Synced {
			n++
		}
	}
	return n, nil
}
