package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelac/retrace/internal/table"
)

func setupTestCache(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := New(mr.Addr())
	require.NoError(t, err)

	return c, mr
}

func sampleTable() table.Table {
	tbl := table.New([]string{"id", "filepath"})
	tbl.Append([]any{float64(1), "/shots/a.png"})
	return tbl
}

func TestNew_InvalidAddress(t *testing.T) {
	_, err := New("invalid:99999")
	assert.Error(t, err)
}

func TestNew_MemoryOnly(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	key := c.Key("SELECT 1", nil)

	c.Set(ctx, key, sampleTable(), time.Minute)
	got, found := c.Get(ctx, key)
	assert.True(t, found)
	assert.Equal(t, 1, got.Len())
}

func TestKeyDeterminism(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	query := "SELECT * FROM entities WHERE id = ?"

	t.Run("identical inputs produce identical keys", func(t *testing.T) {
		assert.Equal(t, c.Key(query, []any{42}), c.Key(query, []any{42}))
	})

	t.Run("whitespace differences do not change the key", func(t *testing.T) {
		assert.Equal(t,
			c.Key("SELECT *   FROM entities\n WHERE id = ?", []any{42}),
			c.Key(query, []any{42}),
		)
	})

	t.Run("different params produce different keys", func(t *testing.T) {
		assert.NotEqual(t, c.Key(query, []any{42}), c.Key(query, []any{43}))
	})

	t.Run("different queries produce different keys", func(t *testing.T) {
		assert.NotEqual(t, c.Key(query, []any{42}), c.Key("SELECT id FROM entities", []any{42}))
	})
}

func TestSetAndGet(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	key := c.Key("SELECT * FROM entities LIMIT 1", nil)

	_, found := c.Get(ctx, key)
	assert.False(t, found)

	c.Set(ctx, key, sampleTable(), time.Minute)

	got, found := c.Get(ctx, key)
	require.True(t, found)
	assert.Equal(t, []string{"id", "filepath"}, got.Columns)
	assert.Equal(t, 1, got.Len())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, 0.5, stats.CacheHitRatio)
}

func TestGetPromotesFromRedis(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	key := c.Key("SELECT * FROM entities", nil)
	c.Set(ctx, key, sampleTable(), time.Minute)

	// Drop the memory tier entry; the value must come back from Redis.
	c.memory.Delete(key)

	got, found := c.Get(ctx, key)
	require.True(t, found)
	assert.Equal(t, 1, got.Len())

	// And now it is back in memory.
	_, inMemory := c.memory.Get(key)
	assert.True(t, inMemory)
}

func TestCorruptEntryIsDeleted(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	key := c.Key("SELECT * FROM entities", nil)
	mr.Set(key, "definitely not json")

	_, found := c.Get(ctx, key)
	assert.False(t, found)
	assert.False(t, mr.Exists(key))
}

func TestRedisDownBehavesLikeMiss(t *testing.T) {
	c, mr := setupTestCache(t)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	key := c.Key("SELECT * FROM entities", nil)

	mr.Close()

	// Neither Set nor Get may panic or error out.
	c.Set(ctx, key, sampleTable(), time.Minute)

	got, found := c.Get(ctx, key)
	assert.True(t, found, "memory tier still serves the entry")
	assert.Equal(t, 1, got.Len())

	c.memory.Delete(key)
	_, found = c.Get(ctx, key)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	keyA := c.Key("SELECT * FROM entities", nil)
	keyB := c.Key("SELECT * FROM metadata_entries", nil)

	c.Set(ctx, keyA, sampleTable(), time.Minute)
	c.Set(ctx, keyB, sampleTable(), time.Minute)

	t.Run("pattern matches the query text, not the key", func(t *testing.T) {
		removed := c.Invalidate(ctx, "entities")
		assert.Equal(t, 2, removed, "one memory entry plus one redis entry")

		_, found := c.Get(ctx, keyA)
		assert.False(t, found)
		_, found = c.Get(ctx, keyB)
		assert.True(t, found)
	})

	t.Run("empty pattern removes all query keys", func(t *testing.T) {
		removed := c.Invalidate(ctx, "")
		assert.Positive(t, removed)

		_, found := c.Get(ctx, keyB)
		assert.False(t, found)
	})
}

func TestSweepEvictsExpiredMemoryEntries(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	c.memory.Set("query:expired", sampleTable(), time.Nanosecond)
	c.memory.Set("query:fresh", sampleTable(), time.Minute)

	time.Sleep(5 * time.Millisecond)
	c.Sweep()

	assert.Equal(t, 1, c.memory.ItemCount())
}

func TestStatsDerivation(t *testing.T) {
	c, mr := setupTestCache(t)
	defer mr.Close()
	defer func() { _ = c.Close() }()

	c.RecordAPIRequest(100 * time.Millisecond)
	c.RecordAPIRequest(300 * time.Millisecond)
	c.RecordAPIFailure()
	c.RecordDBQuery(50 * time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.APIRequests)
	assert.Equal(t, int64(1), stats.APIFailures)
	assert.Equal(t, 0.5, stats.APISuccessRate)
	assert.Equal(t, 200.0, stats.AvgAPIResponseMs)
	assert.Equal(t, 1.0, stats.DBSuccessRate)
	assert.InDelta(t, 66.66, stats.APIUsagePercentage, 0.01)
	assert.InDelta(t, 33.33, stats.DBUsagePercentage, 0.01)
}
