package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

func TestMemoryStore_InsertAssignsIdentity(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	rec := &ports.MirroredRecord{RecordID: "7", Instrument: "marking_sheet", Data: domain.RawRecord{"a": "1"}}
	require.NoError(t, store.Insert(context.Background(), rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixed, rec.CreatedAt)

	kept := &ports.MirroredRecord{ID: "given", CreatedAt: fixed.Add(-time.Hour)}
	require.NoError(t, store.Insert(context.Background(), kept))
	assert.Equal(t, "given", kept.ID)
	assert.Equal(t, fixed.Add(-time.Hour), kept.CreatedAt)
}

func TestMemoryStore_LatestNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i, id := range []string{"1", "2", "3"} {
		require.NoError(t, store.Insert(ctx, &ports.MirroredRecord{
			RecordID:  id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Same timestamp as record 3; inserted later so listed first.
	require.NoError(t, store.Insert(ctx, &ports.MirroredRecord{RecordID: "4", CreatedAt: base.Add(2 * time.Minute)}))

	all, err := store.Latest(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.RecordID)
	}
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids)

	two, err := store.Latest(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := domain.RawRecord{"candidate_names": "Jane Doe"}
	require.NoError(t, store.Insert(ctx, &ports.MirroredRecord{RecordID: "1", Data: data}))
	data["candidate_names"] = "changed"

	got, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got[0].Data.Get("candidate_names"))

	got[0].Data["candidate_names"] = "mutated"
	again, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", again[0].Data.Get("candidate_names"))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Insert(ctx, &ports.MirroredRecord{})
	var se *ports.StoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Latest(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, store.Ping(ctx))
}

func TestMemoryStore_ConcurrentInserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Insert(ctx, &ports.MirroredRecord{RecordID: "x"})
		}()
	}
	wg.Wait()

	all, err := store.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestEntityMapping(t *testing.T) {
	rec := ports.MirroredRecord{
		ID:         "id-1",
		RecordID:   "12",
		Instrument: "marking_sheet",
		Data:       domain.RawRecord{"total_score": "17"},
		CreatedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, rec, makeRecord(*makeEntity(rec)))
}
