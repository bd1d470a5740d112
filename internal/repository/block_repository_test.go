package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBlocks is an in-memory blockStore. err fails every call.
type memBlocks struct {
	mu      sync.Mutex
	entries map[string]model.BlockEntry
	err     error
}

func newMemBlocks() *memBlocks {
	return &memBlocks{entries: make(map[string]model.BlockEntry)}
}

func (m *memBlocks) add(_ context.Context, e model.BlockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.entries[e.Code+"|"+e.DeviceID]; !ok {
		m.entries[e.Code+"|"+e.DeviceID] = e
	}
	return nil
}

func (m *memBlocks) get(_ context.Context, code, deviceID string) (*model.BlockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entries[code+"|"+deviceID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memBlocks) list(context.Context) ([]model.BlockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.BlockEntry
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memBlocks) remove(_ context.Context, code, deviceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.entries[code+"|"+deviceID]
	delete(m.entries, code+"|"+deviceID)
	return ok, nil
}

func (m *memBlocks) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var blockedAt = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func blockEntry(code, deviceID string, minutes int) model.BlockEntry {
	return model.BlockEntry{
		Code:     code,
		DeviceID: deviceID,
		Reason:   model.CheatBlurViolation,
		When:     blockedAt.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestBlockRepository_AddWritesThrough(t *testing.T) {
	cache, archive := newMemBlocks(), newMemBlocks()
	repo := newBlockRepository(cache, archive, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))
	assert.Equal(t, 1, cache.len())
	assert.Equal(t, 1, archive.len())

	// One store down is enough to keep the block.
	cache.err = errors.New("redis down")
	require.NoError(t, repo.Add(ctx, blockEntry("HISTORIA-01", "dev-abc123xyz", 1)))
	assert.Equal(t, 2, archive.len())

	archive.err = errors.New("pg down")
	assert.Error(t, repo.Add(ctx, blockEntry("MATE-2024", "dev-abc123xyz", 2)))
}

func TestBlockRepository_SurvivesLostCache(t *testing.T) {
	cache, archive := newMemBlocks(), newMemBlocks()
	repo := newBlockRepository(cache, archive, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))

	// Flushed Redis.
	cache.entries = make(map[string]model.BlockEntry)

	blocked, err := repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 1, cache.len(), "the cache is restored from PostgreSQL")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CheatBlurViolation, list[0].Reason)

	blocked, err = repo.IsBlocked(ctx, "QUIMICA-2024", "dev-other00000")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockRepository_IsBlockedWithUnreachableCache(t *testing.T) {
	cache, archive := newMemBlocks(), newMemBlocks()
	repo := newBlockRepository(cache, archive, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))

	cache.err = errors.New("redis down")
	blocked, err := repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	require.NoError(t, err)
	assert.True(t, blocked)

	archive.err = errors.New("pg down")
	_, err = repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	assert.Error(t, err)
}

func TestBlockRepository_ListMergesNewestFirst(t *testing.T) {
	cache, archive := newMemBlocks(), newMemBlocks()
	repo := newBlockRepository(cache, archive, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, cache.add(ctx, blockEntry("A-CODE-01", "dev-aaaaaaaaa", 5)))
	require.NoError(t, archive.add(ctx, blockEntry("A-CODE-01", "dev-aaaaaaaaa", 5)))
	require.NoError(t, archive.add(ctx, blockEntry("B-CODE-02", "dev-bbbbbbbbb", 9)))
	require.NoError(t, cache.add(ctx, blockEntry("C-CODE-03", "dev-ccccccccc", 1)))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "B-CODE-02", list[0].Code)
	assert.Equal(t, "A-CODE-01", list[1].Code)
	assert.Equal(t, "C-CODE-03", list[2].Code)
}

func TestBlockRepository_RemoveClearsBothStores(t *testing.T) {
	cache, archive := newMemBlocks(), newMemBlocks()
	repo := newBlockRepository(cache, archive, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))

	removed, err := repo.Remove(ctx, "QUIMICA-2024", "dev-abc123xyz")
	require.NoError(t, err)
	assert.True(t, removed)

	blocked, err := repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	require.NoError(t, err)
	assert.False(t, blocked)

	// A failed archive delete is reported so the admin can retry.
	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))
	archive.err = errors.New("pg down")
	removed, err = repo.Remove(ctx, "QUIMICA-2024", "dev-abc123xyz")
	assert.True(t, removed)
	assert.Error(t, err)
}

func TestBlockRepository_CacheOnly(t *testing.T) {
	cache := newMemBlocks()
	repo := newBlockRepository(cache, nil, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, blockEntry("QUIMICA-2024", "dev-abc123xyz", 0)))
	blocked, err := repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	require.NoError(t, err)
	assert.True(t, blocked)

	cache.err = errors.New("redis down")
	_, err = repo.IsBlocked(ctx, "QUIMICA-2024", "dev-abc123xyz")
	assert.Error(t, err)
}
