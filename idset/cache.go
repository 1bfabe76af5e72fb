package idset

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/evalkit/idjoin/errors"
)

// Store is the persistence gateway the cache drives. Every mutation runs in
// its own transaction, independent of any ambient transaction the caller
// holds, and commits immediately. *storage.RowStore implements it.
type Store interface {
	InsertSet(ctx context.Context, key string, members []int64) error
	CountKey(ctx context.Context, key string) (int, error)
	DeleteKey(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
	DeleteExcept(ctx context.Context, keep []string) (int64, error)
}

// ContextSets is the evaluation-context abstraction the batch operations
// consume: an evaluation id plus a mapping from id-set name to member ids.
// eval.Context implements it.
type ContextSets interface {
	EvaluationID() string
	BaseIDSets() map[string][]int64
}

// Cache materializes id sets into keyed row storage with reference
// counting: the first StartUsing for a key inserts its rows, later ones
// share them, and the rows are deleted when the last StopUsing releases the
// key.
//
// One mutex serializes the registry and its persistence side effects, so a
// persistence round-trip executes while the lock is held and blocks all
// other materialization operations. That is a deliberate trade-off:
// materialization is infrequent relative to query evaluation, and joint
// atomicity of registry mutation and storage mutation is what keeps the
// registry and the idset_rows table in agreement.
type Cache struct {
	mu       sync.Mutex
	registry *Registry
	store    Store
	enabled  bool
	log      *zap.SugaredLogger
}

// NewCache creates a cache over the given store. When enabled is false,
// StartUsing is a no-op returning no key for every call.
func NewCache(store Store, enabled bool, log *zap.SugaredLogger) *Cache {
	return &Cache{
		registry: NewRegistry(),
		store:    store,
		enabled:  enabled,
		log:      log,
	}
}

// Enabled reports whether the materialization optimization is on.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled flips the materialization optimization at runtime, e.g. from a
// config reload callback. Turning it off does not release keys already in
// use; callers still stop what they started.
func (c *Cache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// GenerateKey returns the usage key for a set, or "" for a nil set.
func (c *Cache) GenerateKey(set *IDSet) string {
	return set.Key()
}

// StartUsing materializes the set and registers one reference to its key.
//
// Empty or nil sets, and every call while the cache is disabled, are no-ops
// returning "". If the key is already registered the persisted row count is
// re-verified against the set size and a consistency error is returned on
// mismatch; this guards against key collisions at the cost of one extra
// read per reuse. On a persistence failure the registry is not updated for
// this attempt, so no reference points at unpersisted data.
func (c *Cache) StartUsing(ctx context.Context, set *IDSet) (string, error) {
	if set.IsEmpty() {
		return "", nil
	}

	key := set.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return "", nil
	}

	if c.registry.Contains(key) {
		if c.log != nil {
			c.log.Debugw("Reusing materialized id set",
				"key", key,
				"references", c.registry.Count(key),
			)
		}
		count, err := c.store.CountKey(ctx, key)
		if err != nil {
			return "", errors.Wrap(err, "verify persisted id set")
		}
		if count != set.Size() {
			return "", errors.NewConsistencyError(
				"expected %d persisted rows for key %s, found %d", set.Size(), key, count)
		}
	} else {
		if c.log != nil {
			c.log.Debugw("Materializing id set",
				"key", key,
				"size", set.Size(),
				"evaluation_id", set.EvaluationID(),
			)
		}
		if err := c.store.InsertSet(ctx, key, set.Members()); err != nil {
			return "", errors.Wrap(err, "materialize id set")
		}
	}

	c.registry.Add(key)
	return key, nil
}

// IsInUse reports whether key currently has at least one active reference.
func (c *Cache) IsInUse(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Contains(key)
}

// StopUsing releases one reference to key. When the last reference is
// released the persisted rows are deleted in an independent transaction.
//
// Empty or unregistered keys are no-ops. The registry is decremented before
// the cleanup deletion is attempted and stays decremented if the deletion
// fails; deletion is best-effort cleanup, not atomic with the decrement,
// and is not retried (SweepOrphans recovers rows left behind).
func (c *Cache) StopUsing(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.Contains(key) {
		return nil
	}

	remaining := c.registry.Remove(key)
	if c.log != nil {
		c.log.Debugw("Released id set reference",
			"key", key,
			"references", remaining,
		)
	}
	if remaining > 0 {
		return nil
	}

	if err := c.store.DeleteKey(ctx, key); err != nil {
		return errors.Wrap(err, "clean up released id set")
	}
	return nil
}

// ResetAll clears the registry and deletes persisted rows for all keys. The
// in-memory registry is cleared unconditionally, even if the storage wipe
// fails; no key survives partially.
func (c *Cache) ResetAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Clear()
	if err := c.store.DeleteAll(ctx); err != nil {
		return errors.Wrap(err, "reset id sets")
	}

	if c.log != nil {
		c.log.Infow("Reset all id sets")
	}
	return nil
}

// SweepOrphans deletes persisted rows for keys with zero registry entries.
// Such rows can be left behind when a cleanup deletion fails or the process
// dies between a decrement and its deletion. Returns the number of rows
// removed.
func (c *Cache) SweepOrphans(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted, err := c.store.DeleteExcept(ctx, c.registry.Keys())
	if err != nil {
		return 0, errors.Wrap(err, "sweep orphaned id sets")
	}
	return deleted, nil
}
