// Package mirror stores copies of REDCap records received through the
// data entry trigger webhook.
package mirror

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aphrc/proposal-review/internal/ports"
)

// MemoryStore keeps mirrored records in process memory. Records are lost
// on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []ports.MirroredRecord
	now     func() time.Time
}

var _ ports.MirrorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Insert stores a copy of rec, assigning an ID and timestamp when missing.
func (s *MemoryStore) Insert(ctx context.Context, rec *ports.MirroredRecord) error {
	if err := ctx.Err(); err != nil {
		return ports.NewStoreError("insert", err)
	}
	prepare(rec, s.now)

	cp := *rec
	cp.Data = maps.Clone(rec.Data)

	s.mu.Lock()
	s.records = append(s.records, cp)
	s.mu.Unlock()
	return nil
}

// Latest returns up to limit records, newest first. A limit of zero or
// less returns every record.
func (s *MemoryStore) Latest(ctx context.Context, limit int) ([]ports.MirroredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewStoreError("latest", err)
	}

	s.mu.RLock()
	out := make([]ports.MirroredRecord, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	// Later inserts win timestamp ties.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b ports.MirroredRecord) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Data = maps.Clone(out[i].Data)
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

func prepare(rec *ports.MirroredRecord, now func() time.Time) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now().UTC()
	}
}

