package idset

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/evalkit/idjoin/db"
	"github.com/evalkit/idjoin/errors"
	"github.com/evalkit/idjoin/idset/storage"
)

func newTestCache(t *testing.T) (*Cache, *sql.DB) {
	t.Helper()

	database, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "idjoin.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewRowStore(database, log)
	return NewCache(store, true, log), database
}

func rowCount(t *testing.T, database *sql.DB, key string) int {
	t.Helper()
	var count int
	require.NoError(t, database.QueryRow(
		"SELECT COUNT(*) FROM idset_rows WHERE idset_key = ?", key).Scan(&count))
	return count
}

func totalRows(t *testing.T, database *sql.DB) int {
	t.Helper()
	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM idset_rows").Scan(&count))
	return count
}

func TestStartUsingMaterializesRows(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	set := New("eval-1", []int64{1, 2, 3})
	key, err := cache.StartUsing(ctx, set)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.True(t, cache.IsInUse(key))
	assert.Equal(t, 3, rowCount(t, database, key))
}

func TestStartUsingIdempotentReuse(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	set := New("eval-1", []int64{1, 2, 3})

	key1, err := cache.StartUsing(ctx, set)
	require.NoError(t, err)

	// Second materialization of the same set inserts nothing
	key2, err := cache.StartUsing(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, 3, rowCount(t, database, key1))
}

func TestReferenceCounting(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	set := New("eval-1", []int64{1, 2, 3})
	key, err := cache.StartUsing(ctx, set)
	require.NoError(t, err)
	_, err = cache.StartUsing(ctx, set)
	require.NoError(t, err)

	// First stop leaves the key resident with rows intact
	require.NoError(t, cache.StopUsing(ctx, key))
	assert.True(t, cache.IsInUse(key))
	assert.Equal(t, 3, rowCount(t, database, key))

	// Second stop removes the rows
	require.NoError(t, cache.StopUsing(ctx, key))
	assert.False(t, cache.IsInUse(key))
	assert.Equal(t, 0, rowCount(t, database, key))
}

func TestStopUsingNoOps(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.StopUsing(ctx, ""))
	require.NoError(t, cache.StopUsing(ctx, "never-started"))

	// A registered key is untouched by stops of other keys
	key, err := cache.StartUsing(ctx, New("eval-1", []int64{7}))
	require.NoError(t, err)
	require.NoError(t, cache.StopUsing(ctx, "some-other-key"))
	assert.True(t, cache.IsInUse(key))
	assert.Equal(t, 1, rowCount(t, database, key))
}

func TestStartUsingEmptyAndNilNoOps(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	key, err := cache.StartUsing(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, key)

	key, err = cache.StartUsing(ctx, New("eval-1", nil))
	require.NoError(t, err)
	assert.Empty(t, key)

	assert.Equal(t, 0, totalRows(t, database))
}

func TestStartUsingDisabled(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()
	cache.SetEnabled(false)
	assert.False(t, cache.Enabled())

	key, err := cache.StartUsing(ctx, New("eval-1", []int64{1, 2, 3}))
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, 0, totalRows(t, database))

	// Re-enabling restores normal behavior
	cache.SetEnabled(true)
	assert.True(t, cache.Enabled())
	key, err = cache.StartUsing(ctx, New("eval-1", []int64{1, 2, 3}))
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 3, rowCount(t, database, key))
}

func TestResetAll(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	k1, err := cache.StartUsing(ctx, New("eval-1", []int64{1, 2}))
	require.NoError(t, err)
	k2, err := cache.StartUsing(ctx, New("eval-2", []int64{3, 4, 5}))
	require.NoError(t, err)

	require.NoError(t, cache.ResetAll(ctx))

	assert.False(t, cache.IsInUse(k1))
	assert.False(t, cache.IsInUse(k2))
	assert.Equal(t, 0, totalRows(t, database))
}

func TestConsistencyErrorOnReuse(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	set := New("eval-1", []int64{1, 2, 3})
	key, err := cache.StartUsing(ctx, set)
	require.NoError(t, err)

	// Corrupt the persisted set behind the cache's back
	_, err = database.Exec("DELETE FROM idset_rows WHERE idset_key = ? AND member_id = ?", key, 2)
	require.NoError(t, err)

	_, err = cache.StartUsing(ctx, set)
	require.Error(t, err)
	assert.True(t, errors.IsConsistencyError(err))
	assert.False(t, errors.IsStorageError(err))

	// The failed attempt must not have gained a reference: one stop
	// releases the key entirely.
	require.NoError(t, cache.StopUsing(ctx, key))
	assert.False(t, cache.IsInUse(key))
}

func TestStorageErrorLeavesRegistryUntouched(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	// Force persistence failures by closing the database
	require.NoError(t, database.Close())

	set := New("eval-1", []int64{1, 2, 3})
	key, err := cache.StartUsing(ctx, set)
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.Empty(t, key)

	// No phantom reference to unpersisted data
	assert.False(t, cache.IsInUse(set.Key()))
}

func TestStopUsingDecrementsBeforeCleanupFailure(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	key, err := cache.StartUsing(ctx, New("eval-1", []int64{1, 2, 3}))
	require.NoError(t, err)

	require.NoError(t, database.Close())

	// Cleanup deletion fails, but the reference is already released
	err = cache.StopUsing(ctx, key)
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.False(t, cache.IsInUse(key))
}

func TestSweepOrphans(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	key, err := cache.StartUsing(ctx, New("eval-1", []int64{1, 2}))
	require.NoError(t, err)

	// Simulate rows left behind by a crash between decrement and delete
	_, err = database.Exec("INSERT INTO idset_rows (idset_key, member_id) VALUES (?, ?), (?, ?)",
		"orphan-key", 10, "orphan-key", 11)
	require.NoError(t, err)

	deleted, err := cache.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// The registered key survives the sweep
	assert.Equal(t, 2, rowCount(t, database, key))
	assert.Equal(t, 0, rowCount(t, database, "orphan-key"))
}

func TestGenerateKeyMatchesSetKey(t *testing.T) {
	cache, _ := newTestCache(t)

	set := New("eval-1", []int64{1, 2, 3})
	assert.Equal(t, set.Key(), cache.GenerateKey(set))
	assert.Equal(t, "", cache.GenerateKey(nil))
}

func TestConcurrentStartStop(t *testing.T) {
	cache, database := newTestCache(t)
	ctx := context.Background()

	set := New("eval-1", []int64{1, 2, 3, 4, 5})
	const workers = 8

	var wg sync.WaitGroup
	keys := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = cache.StartUsing(ctx, set)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}

	// Exactly one materialization happened
	assert.Equal(t, 5, rowCount(t, database, keys[0]))

	// Release all but one reference concurrently; rows must survive
	for i := 0; i < workers-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs2 := cache.StopUsing(ctx, keys[0])
			assert.NoError(t, errs2)
		}()
	}
	wg.Wait()

	assert.True(t, cache.IsInUse(keys[0]))
	assert.Equal(t, 5, rowCount(t, database, keys[0]))

	// Final release deletes the rows
	require.NoError(t, cache.StopUsing(ctx, keys[0]))
	assert.False(t, cache.IsInUse(keys[0]))
	assert.Equal(t, 0, totalRows(t, database))
}
